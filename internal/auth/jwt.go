package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborview-properties/messaging-service/internal/apperr"
)

// JWTValidator extracts the subject user ID from a bearer token. The
// session layer upstream issues the tokens; this side only verifies.
type JWTValidator struct {
	alg    string
	pub    *rsa.PublicKey
	secret []byte
}

func NewJWTValidator(alg, publicKeyPath, hsSecret string) (*JWTValidator, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		b, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, err
		}
		block, _ := pem.Decode(b)
		if block == nil {
			return nil, errors.New("failed to decode public key")
		}
		pubIfc, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := pubIfc.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not rsa public key")
		}
		return &JWTValidator{alg: "RS256", pub: pub}, nil
	case "HS256":
		if hsSecret == "" {
			return nil, errors.New("empty HS256 secret")
		}
		return &JWTValidator{alg: "HS256", secret: []byte(hsSecret)}, nil
	}
	return nil, errors.New("unsupported jwt alg")
}

func (j *JWTValidator) Validate(tokenStr string) (string, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if j.alg == "HS256" {
			return j.secret, nil
		}
		return j.pub, nil
	}, jwt.WithValidMethods([]string{j.alg}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if claims, ok := tok.Claims.(jwt.MapClaims); ok && tok.Valid {
		if sub, ok := claims["sub"].(string); ok {
			return sub, nil
		}
		if userID, ok := claims["user_id"].(string); ok {
			return userID, nil
		}
	}
	return "", fmt.Errorf("%w: no subject claim", apperr.ErrUnauthorized)
}
