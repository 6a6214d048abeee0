package jwtmw

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Generator defines the interface for JWT token generation.
type Generator interface {
	// GenerateToken creates a signed JWT token for an operator of a tenant.
	GenerateToken(operatorID, tenantID string) (string, error)
}

// TokenGenerator signs HS256 tokens carrying the operator and tenant claims.
type TokenGenerator struct {
	secret     []byte
	expiration time.Duration
}

var _ Generator = (*TokenGenerator)(nil)

// NewGenerator creates a new JWT generator with the provided secret and expiration duration.
func NewGenerator(secret string, expiration time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret:     []byte(secret),
		expiration: expiration,
	}
}

// GenerateToken creates a signed JWT token with standard claims plus tenant_id.
func (g *TokenGenerator) GenerateToken(operatorID, tenantID string) (string, error) {
	if operatorID == "" || tenantID == "" {
		return "", errors.New("operator id and tenant id are required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         operatorID,
		"exp":         now.Add(g.expiration).Unix(),
		"iat":         now.Unix(),
		claimTenantID: tenantID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
