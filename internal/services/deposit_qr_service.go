package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/coinvault/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// DepositQRService issues short-lived QR codes carrying BTC deposit
// instructions for a user's wallet address. Codes are single-use and
// expire out of Redis after five minutes.
type DepositQRService struct {
	db        *sql.DB
	redis     *redis.Client
	directory *UserDirectory
}

func NewDepositQRService(db *sql.DB, redisClient *redis.Client) *DepositQRService {
	return &DepositQRService{
		db:        db,
		redis:     redisClient,
		directory: NewUserDirectory(db),
	}
}

// GenerateDepositCode builds the deposit payload for the user's BTC wallet
// address and returns the opaque code plus a base64 PNG rendering.
func (s *DepositQRService) GenerateDepositCode(ctx context.Context, userID, amount string) (string, string, error) {
	user, err := s.directory.GetUser(userID)
	if err != nil {
		return "", "", err
	}
	if user.WalletBTCAddress == "" {
		return "", "", fmt.Errorf("%w: no BTC wallet address on file", models.ErrInvalidInput)
	}

	payload := map[string]any{
		"userId":           userID,
		"walletBTCAddress": user.WalletBTCAddress,
		"currency":         models.CurrencyBTC,
		"timestamp":        time.Now().Unix(),
		"nonce":            s.generateNonce(),
	}
	if amount != "" {
		payload["amount"] = amount
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("deposit_qr:%s", code)
		if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
			return "", "", err
		}
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveDepositCode redeems a previously issued code. Codes are consumed
// on first use.
func (s *DepositQRService) ResolveDepositCode(ctx context.Context, code string) (map[string]any, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("deposit code redemption unavailable: no Redis connection")
	}

	key := fmt.Sprintf("deposit_qr:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired deposit code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *DepositQRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
