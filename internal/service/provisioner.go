// provisioner.go — создание пользователей Salesforce по строкам preflight.
//
// В dry run каталог не вызывается вовсе: ни запроса очередей, ни создания,
// ни назначений. В боевом режиме каждая строка создаётся отдельным вызовом;
// ошибка одной строки фиксируется в её CreationOutcome и не прерывает цикл.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// Provisioner — создание пользователей и назначений.
type Provisioner struct {
	assigner *AssignmentResolver
	mapping  config.FieldMapping
	logger   *slog.Logger
}

// NewProvisioner создаёт Provisioner.
// mapping — дополнительные колонки ростера, переносимые в поля User (может быть nil).
func NewProvisioner(assigner *AssignmentResolver, mapping config.FieldMapping, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		assigner: assigner,
		mapping:  mapping,
		logger:   logger.With(slog.String("component", "provisioner")),
	}
}

// BuildUserPayload формирует тело создания User из объединённой строки.
func BuildUserPayload(rec model.MergedRecord, mapping config.FieldMapping) salesforce.UserCreate {
	u := salesforce.UserCreate{
		Username:          rec.Username,
		Alias:             rec.Alias,
		FirstName:         rec.FirstName,
		LastName:          rec.LastName,
		Email:             rec.EmailName,
		ProfileID:         rec.ProfileID,
		UserRoleID:        rec.RoleID,
		TimeZoneSidKey:    rec.TimeZoneSidKey,
		LocaleSidKey:      rec.LocaleSidKey,
		LanguageLocaleKey: rec.LanguageLocaleKey,
		EmailEncodingKey:  rec.EmailEncodingKey,
		IsActive:          rec.IsActive,
		InteractionUser:   rec.InteractionUser,
	}

	if rec.EnableSSO {
		fid := rec.FederationIdentifier
		u.FederationIdentifier = &fid
	}

	for _, fm := range mapping {
		v := rec.Extra[fm.Column]
		if v == "" {
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]string, len(mapping))
		}
		u.Extra[fm.Field] = v
	}

	return u
}

// Provision создаёт пользователей для candidates и возвращает результаты
// в том же порядке.
func (p *Provisioner) Provision(ctx context.Context, dir Directory, candidates []model.MergedRecord, dryRun bool) []model.CreationOutcome {
	outcomes := make([]model.CreationOutcome, 0, len(candidates))

	if dryRun {
		for _, rec := range candidates {
			p.logger.Info("[DRY RUN] Пользователь был бы создан",
				slog.String("username", rec.Username),
			)
			outcomes = append(outcomes, model.CreationOutcome{
				Username: rec.Username,
				Status:   model.StatusDryRun,
			})
			recordsTotal.WithLabelValues(model.StatusDryRun).Inc()
		}
		return outcomes
	}

	index := p.assigner.BuildQueueIndex(ctx, dir, candidates, false)

	for _, rec := range candidates {
		outcome := p.provisionOne(ctx, dir, rec, index)
		recordsTotal.WithLabelValues(outcome.Status).Inc()
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// provisionOne создаёт одного пользователя и выполняет его назначения.
func (p *Provisioner) provisionOne(ctx context.Context, dir Directory, rec model.MergedRecord, index model.QueueIndex) model.CreationOutcome {
	outcome := model.CreationOutcome{Username: rec.Username}

	res, err := dir.Create(ctx, "User", BuildUserPayload(rec, p.mapping))
	switch {
	case err != nil:
		outcome.Status = model.StatusFailed
		outcome.Error = err.Error()
	case res == nil || !res.Success:
		text := "Unknown error"
		if res != nil {
			text = res.ErrorText()
		}
		outcome.Status = model.StatusFailed
		outcome.Error = "User creation failed: " + text
	case res.ID == "":
		outcome.Status = model.StatusFailed
		outcome.Error = "User creation failed: empty id"
	}
	if outcome.Status == model.StatusFailed {
		p.logger.Error("Ошибка создания пользователя",
			slog.Int("row", rec.Row),
			slog.String("username", rec.Username),
			slog.String("error", outcome.Error),
		)
		return outcome
	}

	outcome.Status = model.StatusSuccess
	outcome.SalesforceID = res.ID
	p.logger.Info("Пользователь создан",
		slog.String("username", rec.Username),
		slog.String("user_id", res.ID),
	)

	if errs := p.assigner.Assign(ctx, dir, res.ID, rec.PermissionSetGroupIDs, rec.Queues, index); len(errs) > 0 {
		outcome.Status = model.StatusSuccessWithErrors
		outcome.AssignmentErrors = strings.Join(errs, "\n")
	}

	return outcome
}
