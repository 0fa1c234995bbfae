package fcm

import (
	"crypto/rsa"

	"notice-push/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer produces the signature segment of a JWT.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Algorithm() string
}

// RSASigner signs with RSASSA-PKCS1-v1_5 over SHA-256.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner decodes a PEM private key (PKCS#1 or PKCS#8).
func NewRSASigner(pemKey string) (*RSASigner, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, errors.NewInvalidCredentialError("private_key is not a valid RSA PEM key")
	}
	return &RSASigner{key: key}, nil
}

func (s *RSASigner) Sign(data []byte) ([]byte, error) {
	return jwt.SigningMethodRS256.Sign(string(data), s.key)
}

func (s *RSASigner) Algorithm() string {
	return jwt.SigningMethodRS256.Alg()
}
