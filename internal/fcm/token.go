package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"notice-push/internal/common/errors"
	httpclient "notice-push/internal/common/http"
	"notice-push/internal/common/logger"
)

// Issuer exchanges signed assertions for bearer tokens. Nothing it handles
// (key, assertion, token) is ever logged.
type Issuer struct {
	client    *httpclient.Client
	logger    logger.Logger
	now       func() time.Time
	newSigner func(pemKey string) (Signer, error)
}

type IssuerOption func(*Issuer)

// WithClock fixes the iat of generated assertions.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// WithSignerFactory replaces PEM decoding, e.g. with a fake signer in tests.
func WithSignerFactory(f func(pemKey string) (Signer, error)) IssuerOption {
	return func(i *Issuer) { i.newSigner = f }
}

func NewIssuer(client *httpclient.Client, log logger.Logger, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		client: client,
		logger: log,
		now:    time.Now,
		newSigner: func(pemKey string) (Signer, error) {
			return NewRSASigner(pemKey)
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type tokenResponse struct {
	AccessToken interface{} `json:"access_token"`
}

// ExchangeForToken posts the jwt-bearer grant and returns access_token.
func (i *Issuer) ExchangeForToken(ctx context.Context, assertion, tokenURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", JWTBearerGrantType)
	form.Set("assertion", assertion)

	resp, err := i.client.PostForm(ctx, tokenURI, form)
	if err != nil {
		i.logger.Warn("token exchange transport failure", map[string]interface{}{
			"timeout": ctx.Err() != nil,
		})
		return "", errors.NewTokenExchangeError(0, "token endpoint unreachable")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		i.logger.Warn("token exchange rejected", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return "", errors.NewTokenExchangeError(resp.StatusCode, fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errors.NewTokenExchangeError(resp.StatusCode, "token response is not JSON")
	}
	token, ok := tr.AccessToken.(string)
	if !ok || token == "" {
		return "", errors.NewTokenExchangeError(resp.StatusCode, "token response lacks access_token")
	}
	return token, nil
}

// IssueToken signs a fresh assertion for req and exchanges it.
func (i *Issuer) IssueToken(ctx context.Context, req AccessTokenRequest) (string, error) {
	signer, err := i.newSigner(req.PrivateKey)
	if err != nil {
		return "", err
	}
	assertion, err := BuildAssertion(req, signer, i.now())
	if err != nil {
		return "", errors.NewInvalidCredentialError("assertion could not be signed")
	}
	return i.ExchangeForToken(ctx, assertion, req.TokenURI)
}

// RunTokenSource issues at most one token and hands it to every send of a
// single run. It must not outlive the run.
type RunTokenSource struct {
	issuer *Issuer
	req    AccessTokenRequest

	once  sync.Once
	token string
	err   error
}

func (i *Issuer) NewRunTokenSource(req AccessTokenRequest) *RunTokenSource {
	return &RunTokenSource{issuer: i, req: req}
}

// Token returns the run's bearer token, exchanging on first use.
func (s *RunTokenSource) Token(ctx context.Context) (string, error) {
	s.once.Do(func() {
		s.token, s.err = s.issuer.IssueToken(ctx, s.req)
	})
	return s.token, s.err
}
