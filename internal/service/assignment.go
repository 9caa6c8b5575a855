// assignment.go — назначение permission set groups и очередей созданному пользователю.
// Ошибки назначений не прерывают обработку: каждая фиксируется сообщением,
// остальные назначения выполняются.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// AssignmentResolver — индекс очередей и назначения пользователя.
type AssignmentResolver struct {
	logger *slog.Logger
}

// NewAssignmentResolver создаёт AssignmentResolver.
func NewAssignmentResolver(logger *slog.Logger) *AssignmentResolver {
	return &AssignmentResolver{logger: logger.With(slog.String("component", "assignment"))}
}

// SplitQueues разбирает ячейку очередей: перевод строки, trim, без пустых.
func SplitQueues(queues *string) []string {
	if queues == nil {
		return nil
	}
	return splitTrim(*queues, "\n")
}

// SplitPermissionSetGroups разбирает ячейку PSG: ";", trim, без пустых.
func SplitPermissionSetGroups(ids *string) []string {
	if ids == nil {
		return nil
	}
	return splitTrim(*ids, ";")
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BuildQueueIndex строит индекс «имя очереди → Id группы» одним запросом
// по объединению очередей всех кандидатов. В dry run и без очередей запрос
// не выполняется. Ошибка запроса даёт пустой индекс.
func (a *AssignmentResolver) BuildQueueIndex(ctx context.Context, dir Directory, candidates []model.MergedRecord, dryRun bool) model.QueueIndex {
	index := make(model.QueueIndex)
	if dryRun {
		return index
	}

	seen := make(map[string]struct{})
	var names []string
	for _, c := range candidates {
		for _, q := range SplitQueues(c.Queues) {
			if _, ok := seen[q]; ok {
				continue
			}
			seen[q] = struct{}{}
			names = append(names, q)
		}
	}
	if len(names) == 0 {
		return index
	}

	soql := "SELECT Id, Name FROM Group WHERE Type = 'Queue' AND Name IN " + salesforce.InList(names)
	res, err := dir.QueryAll(ctx, soql)
	if err != nil {
		a.logger.Warn("Не удалось получить Id очередей, назначения в очереди будут пропущены",
			slog.Int("queues", len(names)),
			slog.String("error", err.Error()),
		)
		return index
	}

	groups, err := salesforce.DecodeRecords[salesforce.GroupRecord](res)
	if err != nil {
		a.logger.Warn("Не удалось разобрать ответ по очередям",
			slog.String("error", err.Error()),
		)
		return index
	}
	for _, g := range groups {
		index[g.Name] = g.ID
	}

	a.logger.Info("Индекс очередей построен",
		slog.Int("requested", len(names)),
		slog.Int("found", len(index)),
	)

	return index
}

// Assign назначает пользователю permission set groups и очереди.
// Возвращает сообщения об ошибках в порядке выполнения; пустой срез — всё назначено.
func (a *AssignmentResolver) Assign(
	ctx context.Context,
	dir Directory,
	userID string,
	permissionSetGroupIDs *string,
	queues *string,
	index model.QueueIndex,
) []string {
	var errs []string

	for _, psgID := range SplitPermissionSetGroups(permissionSetGroupIDs) {
		err := createChecked(ctx, dir, "PermissionSetAssignment", salesforce.PermissionSetAssignment{
			AssigneeID:           userID,
			PermissionSetGroupID: psgID,
		})
		assignmentsTotal.WithLabelValues(assignmentKindPSG, resultLabel(err)).Inc()
		if err != nil {
			msg := fmt.Sprintf("Failed to assign Permission Set Group %s: %v", psgID, err)
			a.logger.Warn("Ошибка назначения permission set group",
				slog.String("user_id", userID),
				slog.String("psg_id", psgID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, msg)
			continue
		}
		a.logger.Debug("Permission set group назначена",
			slog.String("user_id", userID),
			slog.String("psg_id", psgID),
		)
	}

	for _, name := range SplitQueues(queues) {
		groupID, ok := index[name]
		if !ok {
			assignmentsTotal.WithLabelValues(assignmentKindQueue, "not_found").Inc()
			errs = append(errs, fmt.Sprintf("Queue '%s' not found.", name))
			continue
		}

		err := createChecked(ctx, dir, "GroupMember", salesforce.GroupMember{
			GroupID:       groupID,
			UserOrGroupID: userID,
		})
		assignmentsTotal.WithLabelValues(assignmentKindQueue, resultLabel(err)).Inc()
		if err != nil {
			msg := fmt.Sprintf("Failed to assign user to Queue %s: %v", name, err)
			a.logger.Warn("Ошибка добавления в очередь",
				slog.String("user_id", userID),
				slog.String("queue", name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, msg)
			continue
		}
		a.logger.Debug("Пользователь добавлен в очередь",
			slog.String("user_id", userID),
			slog.String("queue", name),
		)
	}

	return errs
}

// createChecked выполняет Create и считает success=false ошибкой.
func createChecked(ctx context.Context, dir Directory, sobject string, payload any) error {
	res, err := dir.Create(ctx, sobject, payload)
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("пустой ответ Salesforce")
	}
	if !res.Success {
		return errors.New(res.ErrorText())
	}
	return nil
}
