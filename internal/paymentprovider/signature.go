package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance допустимый возраст подписи.
const DefaultTolerance = 5 * time.Minute

// Ошибки проверки подписи.
var (
	ErrNoWebhookSecret  = errors.New("webhook secret is not configured")
	ErrInvalidHeader    = errors.New("invalid signature header")
	ErrNoValidSignature = errors.New("no valid signature found")
	ErrTooOld           = errors.New("signature timestamp outside tolerance")
)

// VerifySignature проверяет заголовок Stripe-Signature вида
// "t=<unix>,v1=<hex>[,v1=<hex>]" для тела payload. Подпись считается
// верной, если хотя бы одна v1 совпала с HMAC-SHA256(secret, t + "." + payload).
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrNoWebhookSecret
	}

	var (
		timestamp  int64
		hasTime    bool
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidHeader)
			}
			timestamp, hasTime = ts, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if !hasTime || len(signatures) == 0 {
		return ErrInvalidHeader
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			valid = true
		}
	}
	if !valid {
		return ErrNoValidSignature
	}

	if tolerance > 0 && now.Sub(time.Unix(timestamp, 0)) > tolerance {
		return ErrTooOld
	}
	return nil
}

// ConstructEvent проверяет подпись и разбирает конверт события.
func ConstructEvent(payload []byte, header, secret string, now time.Time) (*Event, error) {
	if err := VerifySignature(payload, header, secret, DefaultTolerance, now); err != nil {
		return nil, err
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, errors.New("parse webhook event: missing id or type")
	}
	return &event, nil
}

// SignPayload строит заголовок Stripe-Signature для payload. Нужен тестам
// и локальной отладке вебхуков.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	t := strconv.FormatInt(ts.Unix(), 10)
	mac.Write([]byte(t + "."))
	mac.Write(payload)
	return "t=" + t + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
