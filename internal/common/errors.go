// Package common, errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отдавать клиенту правильный HTTP-статус.
package common

import "errors"

// Ошибки леджера (кошелёк, транзакции)
var (
	// ErrInsufficientBalance: транзакция увела бы монеты/опыт/билеты/игры в минус
	ErrInsufficientBalance = errors.New("недостаточно средств на счёте")
	// ErrInvalidIntent: некорректное намерение транзакции (валидация до похода в БД)
	ErrInvalidIntent = errors.New("некорректная транзакция")
	// ErrStorage: инфраструктурная ошибка хранилища, запрос можно повторить с тем же ключом
	ErrStorage = errors.New("хранилище недоступно")
	// ErrAlreadyClaimed: ключ идемпотентности или run_id уже заняты
	ErrAlreadyClaimed = errors.New("ключ уже использован")
	// ErrEntryNotFound: запись леджера не найдена
	ErrEntryNotFound = errors.New("запись леджера не найдена")
)

// Ошибки игр
var (
	// ErrUnknownGame: игры нет в каталоге
	ErrUnknownGame = errors.New("неизвестная игра")
	// ErrInvalidScore: очки вне допустимого диапазона
	ErrInvalidScore = errors.New("некорректный счёт")
)

// Ошибки магазина
var (
	// ErrUnknownItem: товара нет в каталоге
	ErrUnknownItem = errors.New("товар не найден")
	// ErrInvalidQuantity: количество вне диапазона 1..10
	ErrInvalidQuantity = errors.New("некорректное количество")
	// ErrShopDisabled: магазин отключён в настройках
	ErrShopDisabled = errors.New("магазин временно отключён")
)

// Ошибки спина
var (
	// ErrSpinDisabled: спин отключён в настройках
	ErrSpinDisabled = errors.New("спин временно отключён")
)

// Ошибки наград
var (
	// ErrDailyDisabled: ежедневный бонус отключён в настройках
	ErrDailyDisabled = errors.New("ежедневный бонус временно отключён")
)

// Ошибки админки
var (
	// ErrAdminDisabled: ADMIN_KEY_HASH не задан
	ErrAdminDisabled = errors.New("админка отключена")
	// ErrWrongAdminKey: неверный админский ключ
	ErrWrongAdminKey = errors.New("неверный ключ администратора")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите")
)
