package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"shop_insight_v1/pkg/kv"
)

// 验证码用途
const (
	OTPPurposeVerify = "verify"
	OTPPurposeReset  = "reset"
)

type otpRecord struct {
	Code      string `json:"code"`
	Attempts  int    `json:"attempts"`
	ExpiresAt int64  `json:"expires_at"` // unix 秒，错误重试不延长有效期
}

// OTPStore 6 位数字验证码，存放在 KV 中，一次性使用
type OTPStore struct {
	kv          kv.Store
	ttl         time.Duration
	maxAttempts int
	generate    func() (string, error)
	now         func() time.Time
}

func NewOTPStore(store kv.Store, ttl time.Duration, maxAttempts int) *OTPStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPStore{kv: store, ttl: ttl, maxAttempts: maxAttempts, generate: randomCode, now: time.Now}
}

func otpKey(purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, strings.ToLower(strings.TrimSpace(email)))
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue 生成并保存验证码，覆盖同用途的旧验证码
func (s *OTPStore) Issue(ctx context.Context, purpose, email string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("生成验证码失败: %w", err)
	}
	rec := otpRecord{Code: code, ExpiresAt: s.now().Add(s.ttl).Unix()}
	if err := s.save(ctx, purpose, email, rec, s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify 校验成功后删除；错误次数达到上限也删除
func (s *OTPStore) Verify(ctx context.Context, purpose, email, code string) error {
	key := otpKey(purpose, email)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("读取验证码失败: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		_ = s.kv.Delete(ctx, key)
		return ErrInvalidOTP
	}

	remaining := time.Unix(rec.ExpiresAt, 0).Sub(s.now())
	if remaining <= 0 {
		_ = s.kv.Delete(ctx, key)
		return ErrInvalidOTP
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
		return s.kv.Delete(ctx, key)
	}

	rec.Attempts++
	if rec.Attempts >= s.maxAttempts {
		_ = s.kv.Delete(ctx, key)
		return ErrTooManyAttempts
	}
	// 沿用剩余有效期
	if err := s.save(ctx, purpose, email, rec, remaining); err != nil {
		return err
	}
	return ErrInvalidOTP
}

func (s *OTPStore) save(ctx context.Context, purpose, email string, rec otpRecord, ttl time.Duration) error {
	b, _ := json.Marshal(rec)
	if err := s.kv.Set(ctx, otpKey(purpose, email), string(b), ttl); err != nil {
		return fmt.Errorf("保存验证码失败: %w", err)
	}
	return nil
}
