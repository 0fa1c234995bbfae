package fcm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const assertionLifetime = time.Hour

type assertionHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type assertionClaims struct {
	Iss   string `json:"iss"`
	Scope string `json:"scope"`
	Aud   string `json:"aud"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// BuildAssertion returns "<header>.<claims>.<signature>", each segment
// base64url-encoded without padding.
func BuildAssertion(req AccessTokenRequest, signer Signer, now time.Time) (string, error) {
	header, err := json.Marshal(assertionHeader{Alg: signer.Algorithm(), Typ: "JWT"})
	if err != nil {
		return "", err
	}

	iat := now.Unix()
	claims, err := json.Marshal(assertionClaims{
		Iss:   req.ClientEmail,
		Scope: req.Scope,
		Aud:   req.TokenURI,
		Iat:   iat,
		Exp:   iat + int64(assertionLifetime/time.Second),
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(claims)

	sig, err := signer.Sign([]byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signingInput + "." + enc.EncodeToString(sig), nil
}
