package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager выпускает и проверяет сессионные токены. Токен короткоживущий,
// нигде не хранится и криптографически привязан ровно к одному uid.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Mint выпускает токен для учётной записи. Роль водителя зашивается в клеймы,
// как это делал исходный справочник идентичностей.
func (m *TokenManager) Mint(uid, phoneNumber string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   uid,
		"phone": phoneNumber,
		"role":  "driver",
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token manager: mint: %w", err)
	}

	return signed, nil
}

// Parse проверяет токен и возвращает uid и номер телефона из клеймов.
func (m *TokenManager) Parse(raw string) (string, string, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", "", fmt.Errorf("token manager: parse: %w", jwt.ErrTokenInvalidClaims)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	phoneNumber, _ := claims["phone"].(string)

	return sub, phoneNumber, nil
}
