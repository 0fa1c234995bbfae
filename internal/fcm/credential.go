// Package fcm issues OAuth2 access tokens for a service account and delivers
// summary pushes through the FCM HTTP v1 API.
package fcm

import (
	"encoding/json"
	"strings"

	"notice-push/internal/common/errors"
)

const (
	// MessagingScope is the OAuth2 scope required by the send endpoint.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	// JWTBearerGrantType is the RFC 7523 grant used for the exchange.
	JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// DefaultTokenURI is used when the credential does not name one.
	DefaultTokenURI = "https://oauth2.googleapis.com/token"
)

// ServiceAccount is the subset of a service-account JSON key that is used.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
	ProjectID   string `json:"project_id"`
}

// AccessTokenRequest carries everything needed to mint one assertion.
type AccessTokenRequest struct {
	TokenURI    string
	GrantType   string
	Scope       string
	ClientEmail string
	PrivateKey  string
}

// ParseCredential decodes a service-account JSON key. Blank client_email or
// private_key is an INVALID_CREDENTIAL error.
func ParseCredential(raw []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, errors.NewInvalidCredentialError("service account is not valid JSON")
	}

	sa.ClientEmail = strings.TrimSpace(sa.ClientEmail)
	sa.PrivateKey = strings.TrimSpace(sa.PrivateKey)
	sa.TokenURI = strings.TrimSpace(sa.TokenURI)

	if sa.ClientEmail == "" {
		return nil, errors.NewInvalidCredentialError("client_email is missing")
	}
	if sa.PrivateKey == "" {
		return nil, errors.NewInvalidCredentialError("private_key is missing")
	}
	if !strings.Contains(sa.PrivateKey, "\n") {
		sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURI
	}
	return &sa, nil
}

// BuildAccessTokenRequest parses raw and fills in the fixed grant and scope.
func BuildAccessTokenRequest(raw []byte) (AccessTokenRequest, error) {
	sa, err := ParseCredential(raw)
	if err != nil {
		return AccessTokenRequest{}, err
	}
	return AccessTokenRequest{
		TokenURI:    sa.TokenURI,
		GrantType:   JWTBearerGrantType,
		Scope:       MessagingScope,
		ClientEmail: sa.ClientEmail,
		PrivateKey:  sa.PrivateKey,
	}, nil
}
