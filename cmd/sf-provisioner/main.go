// Точка входа sf-provisioner — провижининг пользователей Salesforce
// по ростеру из рабочей книги.
// Загружает конфигурацию, настраивает логирование, выполняет команду
// (preflight, create-users, provision, validate, report, analyze),
// по завершении отправляет метрики запуска в Pushgateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Коды завершения.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// exitCodeError — ошибка с явным кодом завершения.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func (e *exitCodeError) Unwrap() error { return e.err }

// withCode назначает ошибке код завершения.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

// usageErrorf — ошибка аргументов командной строки (код 2).
func usageErrorf(format string, args ...any) error {
	return withCode(exitUsage, fmt.Errorf(format, args...))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run выполняет CLI и возвращает код завершения.
func run(ctx context.Context, args []string) int {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	// Ошибки флагов и аргументов cobra возвращает до PersistentPreRunE
	if !a.started {
		err = withCode(exitUsage, err)
	}
	slog.Error("Ошибка выполнения команды", slog.String("error", err.Error()))
	return exitCode(err)
}

// exitCode возвращает код завершения для ошибки.
func exitCode(err error) int {
	var ce *exitCodeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitError
}
