// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package auth provides credential verification and JWT handling for both the
// HTTP API and WebSocket admission.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
)

// Sentinel errors for admission failures. The WebSocket handler maps these to
// connection-establishment rejections before any registry mutation happens.
var (
	// ErrTokenMissing indicates no credential was presented.
	ErrTokenMissing = errors.New("authentication required")

	// ErrTokenInvalid indicates a malformed, tampered, or expired token.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims represents JWT claims carried by Parley tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the identity attached to a connection.
func (c *Claims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, Role: c.Role, Email: c.Email}
}

// JWTManager handles JWT token creation and validation using HMAC-SHA256.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a JWT token manager with the configured secret and
// session timeout. The secret must be non-empty; config validation enforces
// the 32-character minimum.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
	}, nil
}

// GenerateToken creates a signed token for an authenticated user.
//
// Claims carry the user id, role, and email plus standard expiry fields.
// Tokens are stateless and cannot be revoked before expiration.
func (m *JWTManager) GenerateToken(userID, role, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.timeout)

	claims := &Claims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// ValidateToken validates a token string and extracts the user claims.
//
// Validation covers structure, HMAC-SHA256 signature, signing algorithm
// (rejecting algorithm-confusion attempts), expiry, and not-before. All
// failures collapse into ErrTokenInvalid for the caller; the underlying
// cause is preserved in the wrap chain.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrTokenInvalid)
	}

	return claims, nil
}
