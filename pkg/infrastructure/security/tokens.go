package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vsinha/cims/pkg/domain/entities"
)

var (
	ErrTokenExpired            = errors.New("token has expired")
	ErrTokenInvalid            = errors.New("token is invalid")
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// TokenPair is returned on login and refresh
type TokenPair struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Claims are the fields carried by a verified token
type Claims struct {
	UserID    string
	Role      entities.Role
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 tokens
type TokenIssuer struct {
	secret        []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates an issuer with the given secret and lifetimes
func NewTokenIssuer(secret, issuer string, accessExpiry, refreshExpiry time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	if accessExpiry <= 0 || refreshExpiry <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}
	return &TokenIssuer{
		secret:        []byte(secret),
		issuer:        issuer,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}, nil
}

// Issue creates an access and refresh token for user
func (t *TokenIssuer) Issue(user *entities.User) (*TokenPair, error) {
	now := t.now()

	access, err := t.sign(user, AccessToken, now, t.accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := t.sign(user, RefreshToken, now, t.refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(t.accessExpiry.Seconds()),
		ExpiresAt:    now.Add(t.accessExpiry),
	}, nil
}

func (t *TokenIssuer) sign(user *entities.User, kind TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"type": string(kind),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	if t.issuer != "" {
		claims["iss"] = t.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token and checks it is of the expected type
func (t *TokenIssuer) Verify(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if kind, _ := claims["type"].(string); TokenType(kind) != expected {
		return nil, ErrTokenInvalid
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, ErrTokenInvalid
	}
	role, _ := claims["role"].(string)

	out := &Claims{UserID: userID, Role: entities.Role(role), Type: expected}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// NewResetToken returns a random 32-byte hex token and the hash to store for it
func NewResetToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken returns the hex SHA-256 of a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
