// audit.go — отчёт о созданных пользователях и их валидация.
//
// Отчёт — снимок на момент генерации: один запрос по Id созданных
// пользователей, вложенные Profile/UserRole уплощаются. Валидация —
// повторный запрос более узкого набора Id с проверкой наличия и активности.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// reportTimeLayout — формат метки времени в имени отчёта.
const reportTimeLayout = "20060102_150405"

// ReportFileName возвращает имя файла отчёта для момента t.
func ReportFileName(t time.Time) string {
	return "user_creation_report_" + t.Format(reportTimeLayout) + ".csv"
}

// Auditor — отчёт и валидация созданных пользователей.
type Auditor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditor создаёт Auditor.
func NewAuditor(logger *slog.Logger) *Auditor {
	return &Auditor{
		logger: logger.With(slog.String("component", "audit")),
		now:    time.Now,
	}
}

// GenerateReport запрашивает текущее состояние пользователей ids.
// Для пустого ids возвращает nil без запроса.
func (a *Auditor) GenerateReport(ctx context.Context, dir Directory, ids []string) (*model.AuditReport, error) {
	if len(ids) == 0 {
		a.logger.Info("Пользователи не создавались, отчёт не формируется")
		return nil, nil
	}

	a.logger.Info("Формирование отчёта по созданным пользователям",
		slog.Int("users", len(ids)),
	)

	soql := "SELECT Id, Username, Name, Email, Profile.Name, UserRole.Name, FederationIdentifier, IsActive " +
		"FROM User WHERE Id IN " + salesforce.InList(ids)
	res, err := dir.QueryAll(ctx, soql)
	if err != nil {
		return nil, &ReportGenerationError{Stage: "query", Err: err}
	}

	users, err := salesforce.DecodeRecords[salesforce.UserRecord](res)
	if err != nil {
		return nil, &ReportGenerationError{Stage: "decode", Err: err}
	}

	generatedAt := a.now()
	report := &model.AuditReport{
		GeneratedAt: generatedAt,
		FileName:    ReportFileName(generatedAt),
		Records:     make([]model.AuditRecord, 0, len(users)),
	}
	for _, u := range users {
		rec := model.AuditRecord{
			ID:       u.ID,
			Username: u.Username,
			Name:     u.Name,
			Email:    u.Email,
			IsActive: u.IsActive,
		}
		if u.FederationIdentifier != nil {
			rec.FederationIdentifier = *u.FederationIdentifier
		}
		if u.Profile != nil {
			rec.ProfileName = u.Profile.Name
		}
		if u.UserRole != nil {
			rec.UserRoleName = u.UserRole.Name
		}
		report.Records = append(report.Records, rec)
	}

	return report, nil
}

// Validate проверяет, что пользователи ids существуют и активны.
// Для пустого ids запрос не выполняется.
func (a *Auditor) Validate(ctx context.Context, dir Directory, ids []string) (*model.ValidationResult, error) {
	result := &model.ValidationResult{Requested: ids}
	if len(ids) == 0 {
		a.logger.Info("Нет пользователей для валидации")
		return result, nil
	}

	soql := "SELECT Id, Username, IsActive, ProfileId, UserRoleId, FederationIdentifier " +
		"FROM User WHERE Id IN " + salesforce.InList(ids)
	res, err := dir.QueryAll(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("%w: валидация: %w", ErrDirectoryUnavailable, err)
	}

	users, err := salesforce.DecodeRecords[salesforce.UserRecord](res)
	if err != nil {
		return nil, fmt.Errorf("валидация: %w", err)
	}

	found := make(map[string]salesforce.UserRecord, len(users))
	for _, u := range users {
		found[u.ID] = u
	}

	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			result.Missing = append(result.Missing, id)
			a.logger.Warn("Пользователь не найден при валидации", slog.String("user_id", id))
			continue
		}
		result.Found = append(result.Found, model.ValidatedUser{
			ID:                   u.ID,
			Username:             u.Username,
			IsActive:             u.IsActive,
			ProfileID:            deref(u.ProfileID),
			UserRoleID:           deref(u.UserRoleID),
			FederationIdentifier: deref(u.FederationIdentifier),
		})
		if !u.IsActive {
			result.Inactive = append(result.Inactive, id)
			a.logger.Warn("Пользователь неактивен", slog.String("user_id", id), slog.String("username", u.Username))
		}
	}

	a.logger.Info("Валидация завершена",
		slog.Int("requested", len(ids)),
		slog.Int("found", len(result.Found)),
		slog.Int("missing", len(result.Missing)),
		slog.Int("inactive", len(result.Inactive)),
	)

	return result, nil
}

// FilterByProvenance отбирает Id успешно созданных пользователей, чья строка
// ростера имеет провенанс value. Пустой value — без фильтра по провенансу.
// Строка ростера сопоставляется по Username (первое вхождение).
func FilterByProvenance(outcomes []model.CreationOutcome, roster []model.RosterRecord, value string) []string {
	addedBy := make(map[string]string, len(roster))
	for _, r := range roster {
		if _, ok := addedBy[r.Username]; !ok {
			addedBy[r.Username] = r.AddedBy
		}
	}

	var ids []string
	for _, o := range outcomes {
		if !o.Created() || o.SalesforceID == "" {
			continue
		}
		if value != "" {
			if by, ok := addedBy[o.Username]; !ok || by != value {
				continue
			}
		}
		ids = append(ids, o.SalesforceID)
	}
	return ids
}

// CreatedIDs возвращает Id всех успешно созданных пользователей.
func CreatedIDs(outcomes []model.CreationOutcome) []string {
	var ids []string
	for _, o := range outcomes {
		if o.Created() && o.SalesforceID != "" {
			ids = append(ids, o.SalesforceID)
		}
	}
	return ids
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
