// preflight.go — проверка дубликатов перед созданием пользователей.
//
// Один пакетный запрос к каталогу по всем email и username кандидатов.
// Совпадение по email имеет приоритет над совпадением по username.
// Ошибка запроса не фатальна: все строки получают "Create New User",
// результат помечается как деградированный.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// PreflightResult — результат preflight.
type PreflightResult struct {
	Decisions []model.PreflightDecision
	// Degraded — запрос дубликатов не выполнен, проверка не проводилась
	Degraded bool
	// QueryError — причина деградации
	QueryError error
}

// Count возвращает количество решений с указанным действием.
func (r *PreflightResult) Count(action string) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Action == action {
			n++
		}
	}
	return n
}

// ToCreate возвращает строки с действием "Create New User" в исходном порядке.
func (r *PreflightResult) ToCreate() []model.MergedRecord {
	out := make([]model.MergedRecord, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		if d.Action == model.ActionCreate {
			out = append(out, d.MergedRecord)
		}
	}
	return out
}

// DuplicateChecker — preflight-проверка дубликатов.
type DuplicateChecker struct {
	logger *slog.Logger
}

// NewDuplicateChecker создаёт DuplicateChecker.
func NewDuplicateChecker(logger *slog.Logger) *DuplicateChecker {
	return &DuplicateChecker{logger: logger.With(slog.String("component", "preflight"))}
}

// Check классифицирует кандидатов как создаваемых или дубликаты.
// Порядок и количество решений совпадают с candidates.
func (c *DuplicateChecker) Check(ctx context.Context, dir Directory, candidates []model.MergedRecord) *PreflightResult {
	emails := distinctNonEmpty(candidates, func(r model.MergedRecord) string { return r.EmailName })
	usernames := distinctNonEmpty(candidates, func(r model.MergedRecord) string { return r.Username })

	result := &PreflightResult{Decisions: make([]model.PreflightDecision, 0, len(candidates))}

	lookup, err := c.lookupExisting(ctx, dir, emails, usernames)
	if err != nil {
		result.Degraded = true
		result.QueryError = &DuplicateQueryError{Err: err}
		preflightDegradedTotal.Inc()
		c.logger.Warn("Запрос дубликатов не выполнен, все строки помечены для создания",
			slog.String("error", err.Error()),
		)
		lookup = nil
	}

	for _, rec := range candidates {
		d := model.PreflightDecision{MergedRecord: rec, Action: model.ActionCreate}

		if note, ok := lookup[strings.ToLower(rec.EmailName)]; ok && rec.EmailName != "" {
			d.Action, d.Notes = model.ActionSkipDuplicate, note
		} else if note, ok := lookup[strings.ToLower(rec.Username)]; ok && rec.Username != "" {
			d.Action, d.Notes = model.ActionSkipDuplicate, note
		}

		preflightDecisionsTotal.WithLabelValues(d.Action).Inc()
		result.Decisions = append(result.Decisions, d)
	}

	c.logger.Info("Preflight завершён",
		slog.Int("total", len(result.Decisions)),
		slog.Int("create", result.Count(model.ActionCreate)),
		slog.Int("skip", result.Count(model.ActionSkipDuplicate)),
		slog.Bool("degraded", result.Degraded),
	)

	return result
}

// lookupExisting запрашивает существующих пользователей и строит таблицу
// «ключ в нижнем регистре → заметка». Email-записи вносятся первыми;
// username-запись не перезаписывает существующий ключ.
func (c *DuplicateChecker) lookupExisting(ctx context.Context, dir Directory, emails, usernames []string) (map[string]string, error) {
	lookup := make(map[string]string)

	soql := duplicateQuery(emails, usernames)
	if soql == "" {
		return lookup, nil
	}

	res, err := dir.QueryAll(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	users, err := salesforce.DecodeRecords[salesforce.UserRecord](res)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Email == "" {
			continue
		}
		lookup[strings.ToLower(u.Email)] = fmt.Sprintf("Email match on User ID %s", u.ID)
	}
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		key := strings.ToLower(u.Username)
		if _, exists := lookup[key]; exists {
			continue
		}
		lookup[key] = fmt.Sprintf("Username match on User ID %s", u.ID)
	}

	c.logger.Debug("Найдены существующие пользователи",
		slog.Int("emails", len(emails)),
		slog.Int("usernames", len(usernames)),
		slog.Int("matches", len(users)),
	)

	return lookup, nil
}

// duplicateQuery строит запрос дубликатов; пустая строка — запрос не нужен.
func duplicateQuery(emails, usernames []string) string {
	var conds []string
	if len(emails) > 0 {
		conds = append(conds, "Email IN "+salesforce.InList(emails))
	}
	if len(usernames) > 0 {
		conds = append(conds, "Username IN "+salesforce.InList(usernames))
	}
	if len(conds) == 0 {
		return ""
	}
	return "SELECT Id, Email, Username FROM User WHERE " + strings.Join(conds, " OR ")
}

// distinctNonEmpty собирает уникальные непустые значения в порядке появления.
func distinctNonEmpty(records []model.MergedRecord, field func(model.MergedRecord) string) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
