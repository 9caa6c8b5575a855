// merger.go — объединение ростера с persona mapping выбранного окружения.
//
// Left outer join по "Persona Name" (регистрозависимо): каждая строка ростера
// даёт ровно одну MergedRecord в исходном порядке. При повторе persona в
// mapping используется первое вхождение. Отсутствие колонки окружения —
// ConfigurationError, результат не возвращается.
package service

import (
	"log/slog"

	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/domain/model"
)

// MergeStats — статистика объединения.
type MergeStats struct {
	// Total — количество строк ростера
	Total int
	// Unmatched — строки без persona в mapping
	Unmatched int
	// SSO — строки с включённым SSO
	SSO int
	// DuplicatePersonas — повторяющиеся имена persona в mapping
	DuplicatePersonas int
}

// Merger — объединение ростера с persona mapping.
type Merger struct {
	logger *slog.Logger
}

// NewMerger создаёт Merger.
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger.With(slog.String("component", "persona_merger"))}
}

// Merge объединяет ростер с persona mapping окружения env и отмечает SSO.
// Не выполняет I/O.
func (m *Merger) Merge(
	roster []model.RosterRecord,
	personas model.PersonaTable,
	sso model.SSORoster,
	env config.EnvironmentColumns,
) ([]model.MergedRecord, MergeStats, error) {
	for _, column := range env.Labels() {
		if !personas.HasColumn(column) {
			return nil, MergeStats{}, &ConfigurationError{Environment: env.Name, Column: column}
		}
	}

	stats := MergeStats{Total: len(roster)}

	index := make(map[string]model.PersonaMapping, len(personas.Personas))
	for _, p := range personas.Personas {
		if _, dup := index[p.Name]; dup {
			stats.DuplicatePersonas++
			m.logger.Warn("Повтор persona в mapping, используется первое вхождение",
				slog.String("persona", p.Name),
			)
			continue
		}
		index[p.Name] = p
	}

	out := make([]model.MergedRecord, 0, len(roster))
	for _, r := range roster {
		rec := model.MergedRecord{
			RosterRecord: r,
			EnableSSO:    sso.Contains(r.EmailEmployeeID),
		}

		if p, ok := index[r.PersonaName]; ok {
			rec.PersonaMatched = true
			rec.Queues = p.Queues
			rec.PersonaPermissions = model.PersonaPermissions{
				ProfileID:             p.Value(env.ProfileID),
				RoleID:                p.Value(env.RoleID),
				PermissionSetGroupIDs: p.Value(env.PermissionSetGroupIDs),
				ContactCenterID:       p.Value(env.ContactCenterID),
			}
		} else {
			stats.Unmatched++
			m.logger.Warn("Persona не найдена в mapping",
				slog.Int("row", r.Row),
				slog.String("username", r.Username),
				slog.String("persona", r.PersonaName),
			)
		}

		if rec.EnableSSO {
			stats.SSO++
		}
		out = append(out, rec)
	}

	m.logger.Info("Ростер объединён с persona mapping",
		slog.String("environment", env.Name),
		slog.Int("total", stats.Total),
		slog.Int("unmatched", stats.Unmatched),
		slog.Int("sso", stats.SSO),
	)

	return out, stats, nil
}
