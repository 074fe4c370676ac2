package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

const OperatorRole = "operator"

// OperatorTokens issues and validates HS256 tokens for the admin surface.
type OperatorTokens struct {
	secret []byte
	issuer string
}

func NewOperatorTokens(secret, issuer string) (*OperatorTokens, error) {
	if secret == "" {
		return nil, errors.New("operator jwt secret is required")
	}
	return &OperatorTokens{secret: []byte(secret), issuer: issuer}, nil
}

type operatorJWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (t *OperatorTokens) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, operatorJWTClaims{
		Role: OperatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(t.secret)
}

func (t *OperatorTokens) ParseAndValidate(raw string) (ports.OperatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &operatorJWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return ports.OperatorClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*operatorJWTClaims)
	if !ok || !parsed.Valid {
		return ports.OperatorClaims{}, domain.ErrUnauthorized
	}
	if claims.Role != OperatorRole {
		return ports.OperatorClaims{}, fmt.Errorf("%w: role %q is not allowed", domain.ErrUnauthorized, claims.Role)
	}
	out := ports.OperatorClaims{Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
