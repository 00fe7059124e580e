// Package common: errors.go определяет ошибки, которые используются во всех модулях
// движка наград. Обработчики различают их через errors.Is и решают,
// что это: штатный отказ, повод для компенсации или ошибка ввода.
package common

import "errors"

// Ошибки пула и кошельков
var (
	// ErrInsufficientFunds: в пуле меньше монет, чем нужно списать
	ErrInsufficientFunds = errors.New("недостаточно монет в общем пуле")
	// ErrInvalidAmount: некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrPoolNotInitialized: строка пула ещё не создана
	ErrPoolNotInitialized = errors.New("пул не инициализирован")
	// ErrInsufficientBalance: на кошельке пользователя не хватает монет для отката
	ErrInsufficientBalance = errors.New("недостаточно монет на кошельке")
	// ErrUserNotFound: аккаунт пользователя не найден
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки выдачи наград
var (
	// ErrDuplicateClaim: награда этого типа за этот день уже записана (нарушение уникальности)
	ErrDuplicateClaim = errors.New("награда за сегодня уже получена")
	// ErrUnknownRewardKind: неизвестный тип награды
	ErrUnknownRewardKind = errors.New("неизвестный тип награды")
	// ErrWalletCredit: не удалось начислить монеты пользователю
	ErrWalletCredit = errors.New("ошибка начисления на кошелёк пользователя")
	// ErrClaimInsert: не удалось записать получение награды
	ErrClaimInsert = errors.New("ошибка записи получения награды")
	// ErrBroadcastNotLive: эфир не идёт (или уже закончился)
	ErrBroadcastNotLive = errors.New("эфир не идёт")
	// ErrNotBroadcaster: эфир ведёт другой пользователь
	ErrNotBroadcaster = errors.New("эфир ведёт другой пользователь")
	// ErrSchedulerStopped: планировщик отложенных наград остановлен
	ErrSchedulerStopped = errors.New("планировщик отложенных наград остановлен")
)

// Ошибки настроек и админки
var (
	// ErrInvalidSetting: значение настройки вне допустимого диапазона
	ErrInvalidSetting = errors.New("некорректное значение настройки")
	// ErrUnknownSetting: неизвестный ключ настройки
	ErrUnknownSetting = errors.New("неизвестная настройка")
	// ErrWrongPassword: неверный пароль администратора
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
