package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Type   string `json:"typ"` // "access" | "refresh"
	jwt.RegisteredClaims
}

func (tm *TokenManager) claims(userID, role, typ string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// GeneratePair issues an access and a refresh token for userID.
func (tm *TokenManager) GeneratePair(userID, role string) (access string, refresh string, accessExp time.Time, err error) {
	now := time.Now()
	accClaims := tm.claims(userID, role, typeAccess, now, tm.accessTTL)
	refClaims := tm.claims(userID, role, typeRefresh, now, tm.refreshTTL)

	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accClaims).SignedString(tm.accessSecret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refClaims).SignedString(tm.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, accClaims.ExpiresAt.Time, nil
}

func (tm *TokenManager) parse(tokenStr string, secret []byte, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tm.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != typ || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccess accepts only access tokens.
func (tm *TokenManager) ParseAccess(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, tm.accessSecret, typeAccess)
}

// ParseAny tries the access secret first, then the refresh secret. The bool
// reports a refresh token.
func (tm *TokenManager) ParseAny(tokenStr string) (*Claims, bool, error) {
	if c, err := tm.parse(tokenStr, tm.accessSecret, typeAccess); err == nil {
		return c, false, nil
	}
	c, err := tm.parse(tokenStr, tm.refreshSecret, typeRefresh)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}
