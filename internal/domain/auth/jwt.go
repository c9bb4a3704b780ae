// Package auth issues and validates the bearer tokens the API accepts.
// Tokens carry the caller's roles and an explicit warehouse allow-list;
// user accounts live outside this service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "stockledger/internal/core/context"
)

// Built-in roles. Other role names only feed warehouse visibility rules.
const (
	// RoleAdmin sees every warehouse and may run maintenance operations.
	RoleAdmin = "admin"
	// RoleCatalogManager may create, change and delete catalog entries.
	RoleCatalogManager = "catalog_manager"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "stockledger",
		AccessTokenTTL: 12 * time.Hour,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string   `json:"uid"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles"`
	WarehouseIDs []string `json:"whs,omitempty"`
	IsAdmin      bool     `json:"adm,omitempty"`
}

// Subject describes who a token is issued for.
type Subject struct {
	UserID       string
	Email        string
	Roles        []string
	WarehouseIDs []string
}

// IsAdmin reports whether the subject holds the admin role.
func (s Subject) IsAdmin() bool {
	for _, r := range s.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateAccessToken signs a token for the subject.
func (s *JWTService) GenerateAccessToken(sub Subject) (string, time.Time, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return "", time.Time{}, errors.New("user id is required")
	}

	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:       sub.UserID,
		Email:        sub.Email,
		Roles:        sub.Roles,
		WarehouseIDs: sub.WarehouseIDs,
		IsAdmin:      sub.IsAdmin(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates JWT and returns user context.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}

	return &appctx.UserContext{
		UserID:       claims.UserID,
		Email:        claims.Email,
		Roles:        claims.Roles,
		WarehouseIDs: claims.WarehouseIDs,
		IsAdmin:      claims.IsAdmin,
	}, nil
}
