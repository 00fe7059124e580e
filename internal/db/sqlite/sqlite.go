// Package sqlite открывает встроенную базу SQLite через gorm.
// Используется для локального запуска (DB_DRIVER=sqlite) и в тестах
// репозиториев: контракты те же, что и у PostgreSQL-реализаций.
package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает файл базы и настраивает пул.
// SQLite допускает одного писателя, поэтому соединение ровно одно,
// а busy_timeout заставляет конкурентные запросы ждать, а не падать с SQLITE_BUSY.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.Infof("SQLite открыта: %s", path)
	return db, nil
}

// Close закрывает соединение с базой.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warnf("Ошибка закрытия SQLite: %v", err)
	}
}

// IsUniqueViolation сообщает, что запись нарушила уникальный индекс.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
