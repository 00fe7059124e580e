// Package admin: auth.go проверяет логин и пароль администратора.
// Пароль хранится только как хеш Argon2id в ADMIN_PASSWORD_HASH.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Параметры Argon2id для новых хешей
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonSaltLength         = 16
	argonKeyLength   uint32 = 32
)

// Заглушка для сравнения пароля при неизвестном логине
var dummyPassword = []byte("$argon2id$v=19$m=65536,t=3,p=2$ZHVtbXlzYWx0$ZHVtbXloYXNo")

// Authenticator проверяет учётные данные администратора.
type Authenticator struct {
	store        AttemptStore
	login        string
	passwordHash string
	now          func() time.Time
}

// NewAuthenticator создаёт проверку входа.
func NewAuthenticator(store AttemptStore, login, passwordHash string) *Authenticator {
	return &Authenticator{
		store:        store,
		login:        login,
		passwordHash: passwordHash,
		now:          time.Now,
	}
}

// Verify проверяет логин и пароль.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
// Неизвестный логин отклоняется без Argon2id и без записи в admin_login_attempts.
func (a *Authenticator) Verify(ctx context.Context, login, password, remoteAddr string) error {
	if subtle.ConstantTimeCompare([]byte(login), []byte(a.login)) != 1 {
		subtle.ConstantTimeCompare([]byte(password), dummyPassword)
		log.WithFields(log.Fields{"login": login, "remote": remoteAddr}).Warn("Вход в админку с неизвестным логином")
		return common.ErrWrongPassword
	}

	failures, err := a.store.RecentFailures(ctx, login, a.now().Add(-LockoutWindow))
	if err != nil {
		return err
	}
	if failures >= MaxFailedAttempts {
		log.WithFields(log.Fields{"login": login, "remote": remoteAddr}).Warn("Вход в админку заблокирован")
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, a.passwordHash)

	if err := a.store.LogAttempt(ctx, login, remoteAddr, match); err != nil {
		log.WithError(err).Error("Не удалось записать попытку входа")
	}
	if !match {
		log.WithFields(log.Fields{
			"login":    login,
			"remote":   remoteAddr,
			"failures": failures + 1,
		}).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}
	return nil
}

// HashPassword возвращает хеш Argon2id в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
