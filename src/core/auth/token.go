package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL 会话令牌有效期
const TokenTTL = 24 * time.Hour

var (
	// ErrMissingToken 请求未携带令牌
	ErrMissingToken = errors.New("缺少认证令牌")
	// ErrSessionMismatch 令牌与请求的会话不一致
	ErrSessionMismatch = errors.New("令牌与会话不匹配")
)

type AuthToken struct {
	secretKey    []byte
	staticTokens []string
}

// NewAuthToken 创建令牌签发与校验器，staticTokens 为配置文件中的固定令牌
func NewAuthToken(secretKey string, staticTokens ...string) (*AuthToken, error) {
	if secretKey == "" {
		return nil, errors.New("secret key cannot be empty")
	}
	return &AuthToken{
		secretKey:    []byte(secretKey),
		staticTokens: staticTokens,
	}, nil
}

// GenerateToken 为会话签发令牌
func (at *AuthToken) GenerateToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        now.Add(TokenTTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken 校验令牌并返回会话ID
func (at *AuthToken) VerifyToken(tokenString string) (bool, string, error) {
	if at == nil {
		return false, "", errors.New("AuthToken instance is nil")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return false, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, "", errors.New("invalid claims")
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return false, "", errors.New("invalid session_id in claims")
	}
	return true, sessionID, nil
}

// IsStaticToken 是否为配置的固定令牌
func (at *AuthToken) IsStaticToken(token string) bool {
	for _, t := range at.staticTokens {
		if t != "" && subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// Authorize 校验 Authorization 头，固定令牌可访问任意会话
// sessionID 为空时只校验令牌本身
func (at *AuthToken) Authorize(header, sessionID string) error {
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return ErrMissingToken
	}
	if at.IsStaticToken(token) {
		return nil
	}
	_, tokenSession, err := at.VerifyToken(token)
	if err != nil {
		return err
	}
	if sessionID != "" && tokenSession != sessionID {
		return ErrSessionMismatch
	}
	return nil
}
