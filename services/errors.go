package services

import (
	"errors"

	"github.com/Dosada05/rating-system/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
// Таксономия: валидация (исправить вход), не найдено, не разрешено,
// конфликт (перечитать состояние и повторить), отказ хранилища.
var (
	// Ресурс не найден
	ErrNotFound             = errors.New("requested resource not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrScoreRequired    = errors.New("score must contain at least one set")
	ErrScoreInvalid     = errors.New("score contains negative tallies")

	// Конфликты: вызывающий может перечитать состояние и повторить
	ErrVersionConflict      = errors.New("match was modified concurrently, reload and retry")
	ErrAlreadyRegistered    = errors.New("player is already registered for this tournament")
	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrRegistrationClosed   = errors.New("tournament registration is closed")
	ErrFinalizedScoreDiffer = errors.New("match is already finalized with a different score")

	// Недопустимый переход жизненного цикла матча
	ErrInvalidTransition = errors.New("operation not allowed in the current match state")

	// Авторизация
	ErrNotAuthorized = errors.New("operation not allowed for the current user")

	// Хранилище недоступно; вызывающий повторяет с backoff
	ErrStorageUnavailable = errors.New("storage temporarily unavailable")
)

// storageErr нормализует ошибки слоя хранения: отказ соединения с БД
// превращается в ErrStorageUnavailable (HTTP 503), остальные ошибки
// возвращаются как есть.
func storageErr(err error) error {
	if repositories.IsConnectionError(err) {
		return ErrStorageUnavailable
	}
	return err
}
