package api

import (
	"crypto"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SeatToken 是綁定回合與席位的存取憑證。
// Subject 為回合ID，席位編號與名稱直接寫入 claims，
// 驗證通過後不需再查詢任何狀態即可得知動作者身分。
type SeatToken struct {
	Seat     int    `json:"seat"`
	SeatName string `json:"seatName"`
	jwt.RegisteredClaims
}

// IssueSeatToken 簽發指定回合與席位的憑證
func IssueSeatToken(signer crypto.Signer, roundID string, seat int, seatName string, ttl time.Duration) (string, error) {
	const op = "IssueSeatToken"
	now := time.Now()
	claims := SeatToken{
		Seat:     seat,
		SeatName: seatName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   roundID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(signer)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to sign seat token, err=%w", op, err)
	}
	return signed, nil
}

// ParseAndValidateSeatToken 驗證憑證簽章與效期並取出席位資訊
func ParseAndValidateSeatToken(tokenString string, secret crypto.Signer) (*SeatToken, error) {
	const op = "ParseSeatToken"
	token, err := jwt.ParseWithClaims(tokenString, &SeatToken{}, func(token *jwt.Token) (interface{}, error) {
		return secret.Public(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: token is invalid", op)
	}
	claims, ok := token.Claims.(*SeatToken)
	if !ok {
		return nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	return claims, nil
}
