// org_analyzer.go — read-only запросы для анализа org:
// назначения permission set, permission sets и connected apps по дате изменения,
// сведения об отдельном connected app.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// OrgAnalyzer — запросы анализа org.
type OrgAnalyzer struct {
	dir    Directory
	logger *slog.Logger
}

// NewOrgAnalyzer создаёт OrgAnalyzer.
func NewOrgAnalyzer(dir Directory, logger *slog.Logger) *OrgAnalyzer {
	return &OrgAnalyzer{
		dir:    dir,
		logger: logger.With(slog.String("component", "org_analyzer")),
	}
}

// PermissionSetUsers возвращает пользователей, которым назначен permission set name.
func (o *OrgAnalyzer) PermissionSetUsers(ctx context.Context, name string) ([]model.PermissionSetUser, error) {
	o.logger.Info("Запрос пользователей permission set", slog.String("permission_set", name))

	soql := "SELECT Assignee.Name, Assignee.Email, Assignee.Profile.Name FROM PermissionSetAssignment " +
		"WHERE PermissionSet.Name = " + salesforce.Quote(name) + " ORDER BY Assignee.Name"
	res, err := o.dir.QueryAll(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("PermissionSetUsers: %w", err)
	}

	records, err := salesforce.DecodeRecords[salesforce.AssigneeRecord](res)
	if err != nil {
		return nil, fmt.Errorf("PermissionSetUsers: %w", err)
	}

	users := make([]model.PermissionSetUser, 0, len(records))
	for _, r := range records {
		if r.Assignee == nil {
			continue
		}
		u := model.PermissionSetUser{Name: r.Assignee.Name, Email: r.Assignee.Email}
		if r.Assignee.Profile != nil {
			u.ProfileName = r.Assignee.Profile.Name
		}
		users = append(users, u)
	}
	return users, nil
}

// PermissionSets возвращает permission sets, последние изменённые первыми.
func (o *OrgAnalyzer) PermissionSets(ctx context.Context) ([]model.NamedChange, error) {
	o.logger.Info("Запрос permission sets по дате изменения")
	return o.namedChanges(ctx, "SELECT Name, LastModifiedDate FROM PermissionSet ORDER BY LastModifiedDate DESC")
}

// ConnectedApps возвращает connected apps, последние изменённые первыми.
func (o *OrgAnalyzer) ConnectedApps(ctx context.Context) ([]model.NamedChange, error) {
	o.logger.Info("Запрос connected apps")
	return o.namedChanges(ctx, "SELECT Name, LastModifiedDate FROM ConnectedApp ORDER BY LastModifiedDate DESC")
}

func (o *OrgAnalyzer) namedChanges(ctx context.Context, soql string) ([]model.NamedChange, error) {
	res, err := o.dir.QueryAll(ctx, soql)
	if err != nil {
		return nil, err
	}
	records, err := salesforce.DecodeRecords[salesforce.NamedChangeRecord](res)
	if err != nil {
		return nil, err
	}
	out := make([]model.NamedChange, len(records))
	for i, r := range records {
		out[i] = model.NamedChange{Name: r.Name, LastModifiedDate: r.LastModifiedDate}
	}
	return out, nil
}

// ConnectedApp возвращает сведения о connected app name.
// Возвращает ErrNotFound, если приложение не найдено.
func (o *OrgAnalyzer) ConnectedApp(ctx context.Context, name string) (*model.ConnectedAppDetails, error) {
	o.logger.Info("Запрос сведений о connected app", slog.String("app", name))

	soql := "SELECT Name, DeveloperName, StartUrl, MobileStartUrl FROM ConnectedApp WHERE Name = " + salesforce.Quote(name)
	res, err := o.dir.Query(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("ConnectedApp: %w", err)
	}
	if res.TotalSize == 0 || len(res.Records) == 0 {
		return nil, fmt.Errorf("connected app %q: %w", name, ErrNotFound)
	}

	records, err := salesforce.DecodeRecords[salesforce.ConnectedAppRecord](res)
	if err != nil {
		return nil, fmt.Errorf("ConnectedApp: %w", err)
	}
	r := records[0]
	return &model.ConnectedAppDetails{
		Name:           r.Name,
		DeveloperName:  r.DeveloperName,
		StartURL:       deref(r.StartURL),
		MobileStartURL: deref(r.MobileStartURL),
	}, nil
}
