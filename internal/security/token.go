package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PendingActionClaims carries an authorized-but-unconfirmed billable action
// through the cost-confirmation round trip. The token is self-contained and
// signed, so a confirmation callback cannot replay a different cost or user.
type PendingActionClaims struct {
	TelegramID  int64  `json:"telegram_id"`
	Action      string `json:"action"`
	Model       string `json:"model,omitempty"`
	Cost        int64  `json:"cost"`
	OperationID string `json:"operation_id"`
	jwt.RegisteredClaims
}

// GeneratePendingActionToken signs a pending-action token valid for ttl.
func GeneratePendingActionToken(telegramID int64, action, model string, cost int64, operationID, secret string, ttl time.Duration) (string, error) {
	claims := &PendingActionClaims{
		TelegramID:  telegramID,
		Action:      action,
		Model:       model,
		Cost:        cost,
		OperationID: operationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidatePendingActionToken validates and parses a pending-action token.
func ValidatePendingActionToken(tokenString, secret string) (*PendingActionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PendingActionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*PendingActionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
