// Пакет service — конвейер провижининга пользователей Salesforce:
// объединение ростера с persona mapping, preflight дубликатов, создание
// пользователей с назначениями, отчёт и валидация созданных записей.
package service

import (
	"context"

	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// Directory — каталог пользователей (Salesforce org).
// Реализуется *salesforce.Client; все этапы получают его явно.
type Directory interface {
	// Query возвращает первую страницу результата SOQL-запроса.
	Query(ctx context.Context, soql string) (*salesforce.QueryResult, error)
	// QueryAll возвращает все страницы результата SOQL-запроса.
	QueryAll(ctx context.Context, soql string) (*salesforce.QueryResult, error)
	// Create создаёт запись sobject.
	Create(ctx context.Context, sobject string, payload any) (*salesforce.SaveResult, error)
}
