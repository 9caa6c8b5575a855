package model

import "time"

// Действия preflight. Строковые значения сохраняются в артефактах как есть.
const (
	ActionCreate        = "Create New User"
	ActionSkipDuplicate = "Skip - Duplicate Found"
)

// Статусы создания пользователя.
const (
	StatusDryRun            = "Dry Run - Not Created"
	StatusSuccess           = "Success"
	StatusSuccessWithErrors = "Success with errors"
	StatusFailed            = "Failed"
)

// MergedRecord — строка ростера, обогащённая persona mapping выбранного
// окружения и флагом SSO. Ровно одна на строку ростера, в том же порядке.
type MergedRecord struct {
	RosterRecord
	PersonaPermissions

	// PersonaMatched — найдена ли persona в mapping
	PersonaMatched bool
	// Queues — очереди persona (через перевод строки); nil без совпадения
	Queues *string
	// EnableSSO — EmailEmployeeID входит в SSO-ростер
	EnableSSO bool
}

// PreflightDecision — решение preflight по одной строке.
type PreflightDecision struct {
	MergedRecord

	// Action — ActionCreate или ActionSkipDuplicate
	Action string
	// Notes — причина пропуска ("Email match on User ID ..."), пусто для создания
	Notes string
}

// CreationOutcome — результат обработки одной строки провижинером.
type CreationOutcome struct {
	Username string
	// Status — один из Status*
	Status string
	// SalesforceID — Id созданного пользователя (только при успехе)
	SalesforceID string
	// Error — сообщение об ошибке создания (при StatusFailed)
	Error string
	// AssignmentErrors — ошибки назначений через перевод строки
	AssignmentErrors string
}

// Created сообщает, был ли пользователь фактически создан.
func (o CreationOutcome) Created() bool {
	return o.Status == StatusSuccess || o.Status == StatusSuccessWithErrors
}

// QueueIndex — имя очереди → Id группы. Строится один раз за запуск.
type QueueIndex map[string]string

// RunSummary — итоги запуска.
type RunSummary struct {
	// RunID — UUID запуска
	RunID       string
	Environment string
	DryRun      bool
	// Actions — количество решений preflight по действиям
	Actions map[string]int
	// Statuses — количество результатов по статусам
	Statuses   map[string]int
	StartedAt  time.Time
	FinishedAt time.Time
}
