// Package apikey генерирует и хеширует API ключи пользователей.
//
// Ключ имеет вид "ux_" + 64 hex символа. В базе хранится только sha256 хеш
// и короткий префикс для отображения.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix префикс всех ключей.
	Prefix = "ux_"

	randomBytes   = 32
	displayLength = len(Prefix) + 8
)

// Generate возвращает новый ключ, его хеш и префикс для отображения.
func Generate() (key, hash, display string, err error) {
	const op = "apikey.Generate"
	buf := make([]byte, randomBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("%s: %w", op, err)
	}
	key = Prefix + hex.EncodeToString(buf)
	return key, Hash(key), key[:displayLength], nil
}

// Hash возвращает hex sha256 ключа.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// LooksValid проверяет формат ключа без обращения к базе.
func LooksValid(key string) bool {
	if !strings.HasPrefix(key, Prefix) || len(key) != len(Prefix)+randomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(strings.TrimPrefix(key, Prefix))
	return err == nil
}
