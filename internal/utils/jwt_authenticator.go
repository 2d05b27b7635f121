package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AuthenticatedUser is the caller identity carried by a bearer token.
type AuthenticatedUser struct {
	Sub      string   `json:"sub"`
	Iss      string   `json:"iss"`
	ClientId string   `json:"client_id"`
	Aud      []string `json:"aud"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
	Roles    []string `json:"roles"`
	Scopes   []string `json:"scopes"`
}

// JwtAuthenticator validates HS256 tokens signed with a shared secret.
type JwtAuthenticator struct {
	secret []byte
	Issuer string
}

func NewJwtAuthenticator(secret string) *JwtAuthenticator {
	return &JwtAuthenticator{secret: []byte(secret), Issuer: "webhost-mcp"}
}

// IssueToken signs a token for subject, valid for ttl.
func (a *JwtAuthenticator) IssueToken(subject string, audience []string, scopes []string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    subject,
		"iss":    a.Issuer,
		"iat":    now.Unix(),
		"nbf":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
		"scopes": scopes,
	}
	if len(audience) > 0 {
		claims["aud"] = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateToken verifies the signature and time claims of tokenString.
func (a *JwtAuthenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return a.mapClaimsToUser(claims)
}

func (a *JwtAuthenticator) mapClaimsToUser(claims jwt.MapClaims) (*AuthenticatedUser, error) {
	user := &AuthenticatedUser{}

	if sub, ok := claims["sub"].(string); ok {
		user.Sub = sub
	}
	if iss, ok := claims["iss"].(string); ok {
		user.Iss = iss
	}
	if clientID, ok := claims["client_id"].(string); ok {
		user.ClientId = clientID
	}
	if exp, ok := claims["exp"].(float64); ok {
		user.Exp = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		user.Iat = int64(iat)
	}

	// aud may be a single string or a list
	switch aud := claims["aud"].(type) {
	case string:
		user.Aud = []string{aud}
	case []interface{}:
		user.Aud = toStrings(aud)
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		user.Roles = toStrings(roles)
	}
	if scopes, ok := claims["scopes"].([]interface{}); ok {
		user.Scopes = toStrings(scopes)
	}

	if user.Sub == "" {
		return nil, errors.New("token has no subject")
	}
	return user, nil
}

// HasScope reports whether the user was granted scope.
func (u *AuthenticatedUser) HasScope(scope string) bool {
	for _, s := range u.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
