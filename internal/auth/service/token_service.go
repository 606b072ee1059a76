package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/maxjeffwell/microservices-platform/internal/auth/service TokenGenerator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
)

type TokenGenerator interface {
	Generate(userID, email string) (string, time.Time, error)
	VerifyAccessToken(tokenString string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry() time.Duration
	NewOpaqueToken() (string, error)
}

// TokenService mints and verifies signed access tokens and produces the
// opaque random strings backing refresh, reset and verification tokens.
// Access tokens carry no revocation mechanism: they are trusted until expiry.
type TokenService struct {
	AccessTokenSecret string
	Issuer            string
	Audience          string
	AccessTokenExpiry time.Duration
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewTokenService(accessSecret, issuer, audience string, accessMinutes int) *TokenService {
	return &TokenService{
		AccessTokenSecret: accessSecret,
		Issuer:            issuer,
		Audience:          audience,
		AccessTokenExpiry: time.Duration(accessMinutes) * time.Minute,
	}
}

func (ts *TokenService) Generate(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ts.AccessTokenExpiry)

	claims := JWTCustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Audience:  jwt.ClaimStrings{ts.Audience},
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return accessToken, expiresAt, nil
}

// VerifyAccessToken parses and validates the given access token string,
// checking signature, signing method, issuer and audience. Expiry failures
// are reported separately from every other failure so callers can answer
// "expired" versus "invalid".
func (ts *TokenService) VerifyAccessToken(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ts.AccessTokenSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.Issuer),
		jwt.WithAudience(ts.Audience),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherror.ErrAccessTokenExpired
		}
		return nil, autherror.ErrAccessTokenInvalid
	}

	if !token.Valid {
		return nil, autherror.ErrAccessTokenInvalid
	}

	return claims, nil
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

// NewOpaqueToken returns 256 bits of hex-encoded randomness. Opaque tokens
// carry no structure; they are validated only by store lookup.
func (ts *TokenService) NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate opaque token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
