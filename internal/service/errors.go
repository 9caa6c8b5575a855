// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — объект не найден в каталоге.
	ErrNotFound = errors.New("объект не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrDirectoryUnavailable — каталог (Salesforce) недоступен или вернул ошибку.
	ErrDirectoryUnavailable = errors.New("каталог Salesforce недоступен")
)

// ConfigurationError — в persona mapping нет колонки целевого окружения.
// Фатальна для запуска: ни одна запись не обрабатывается.
type ConfigurationError struct {
	Environment string
	Column      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("колонка %q не найдена в persona mapping для окружения %q", e.Column, e.Environment)
}

// DuplicateQueryError — ошибка запроса дубликатов в preflight.
// Не фатальна: preflight продолжается в деградированном режиме.
type DuplicateQueryError struct {
	Err error
}

func (e *DuplicateQueryError) Error() string {
	return fmt.Sprintf("запрос дубликатов: %v", e.Err)
}

func (e *DuplicateQueryError) Unwrap() error { return e.Err }

// ReportGenerationError — ошибка формирования или записи отчёта.
// Не фатальна и не откатывает созданных пользователей.
type ReportGenerationError struct {
	Stage string
	Err   error
}

func (e *ReportGenerationError) Error() string {
	return fmt.Sprintf("формирование отчёта (%s): %v", e.Stage, e.Err)
}

func (e *ReportGenerationError) Unwrap() error { return e.Err }
