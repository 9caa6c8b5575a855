// workflow.go — оркестрация запуска провижининга.
//
// Последовательность: объединение → preflight → создание строк
// "Create New User" → итоговая таблица → отчёт о созданных → валидация
// отобранных по провенансу. Фатальные ошибки (конфигурация, данные)
// возникают до первого изменяющего вызова. Ошибки записи артефактов
// фиксируются в RunResult.ReportErrors и не прерывают запуск.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/sf-provisioner/internal/artifact"
	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

// artifactTimeLayout — формат метки времени в именах артефактов.
const artifactTimeLayout = "20060102_150405"

// RunOptions — параметры запуска.
type RunOptions struct {
	// Environment — колонки persona mapping целевого окружения
	Environment config.EnvironmentColumns
	// DryRun — не выполнять изменяющих вызовов
	DryRun bool
	// ProvenanceValue — значение провенанса для валидации (пусто — все созданные)
	ProvenanceValue string

	// Имена артефактов. Пустое имя — значение по умолчанию с меткой времени.
	PreflightName string
	OutcomesName  string
	FinalName     string
	// Format — расширение артефактов по умолчанию (.csv или .xlsx)
	Format string
}

// RunResult — результат запуска (или его части).
type RunResult struct {
	Summary    model.RunSummary
	MergeStats MergeStats
	Preflight  *PreflightResult
	Outcomes   []model.CreationOutcome
	Report     *model.AuditReport
	Validation *model.ValidationResult
	// Artifacts — расположения записанных артефактов
	Artifacts []string
	// ReportErrors — нефатальные ошибки формирования и записи артефактов
	ReportErrors []error
}

// Workflow — запуск провижининга поверх каталога и приёмника артефактов.
type Workflow struct {
	dir         Directory
	sink        artifact.Sink
	merger      *Merger
	checker     *DuplicateChecker
	provisioner *Provisioner
	auditor     *Auditor
	logger      *slog.Logger
	now         func() time.Time
	newRunID    func() string
}

// NewWorkflow создаёт Workflow. dir может быть nil для команд, которые
// не обращаются к каталогу (создание в dry run).
func NewWorkflow(dir Directory, sink artifact.Sink, mapping config.FieldMapping, logger *slog.Logger) *Workflow {
	return &Workflow{
		dir:         dir,
		sink:        sink,
		merger:      NewMerger(logger),
		checker:     NewDuplicateChecker(logger),
		provisioner: NewProvisioner(NewAssignmentResolver(logger), mapping, logger),
		auditor:     NewAuditor(logger),
		logger:      logger.With(slog.String("component", "workflow")),
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
	}
}

// Preflight объединяет входные данные и проверяет дубликаты.
// Записывает таблицу preflight.
func (w *Workflow) Preflight(ctx context.Context, in *workbook.Input, opts RunOptions) (*RunResult, error) {
	result, logger := w.begin(opts)

	merged, err := w.merge(in, opts, result)
	if err != nil {
		return nil, err
	}

	result.Preflight = w.checker.Check(ctx, w.dir, merged)
	preflight := workbook.PreflightTable(in.Roster.Header, result.Preflight.Decisions)
	w.writeTable(ctx, result, preflight, w.artifactName(opts.PreflightName, "preflight_results", opts.Format))

	w.finish(result, logger)
	return result, nil
}

// CreateUsers объединяет входные данные заново и создаёт только строки,
// чьи Username отмечены в preflight как "Create New User". Записывает
// таблицу результатов и отчёт о созданных пользователях.
func (w *Workflow) CreateUsers(ctx context.Context, in *workbook.Input, toCreate map[string]struct{}, opts RunOptions) (*RunResult, error) {
	result, logger := w.begin(opts)

	merged, err := w.merge(in, opts, result)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.MergedRecord, 0, len(toCreate))
	for _, rec := range merged {
		if _, ok := toCreate[rec.Username]; ok {
			candidates = append(candidates, rec)
		}
	}
	logger.Info("Отобраны строки для создания",
		slog.Int("preflight_create", len(toCreate)),
		slog.Int("matched", len(candidates)),
	)

	result.Outcomes = w.provisioner.Provision(ctx, w.dir, candidates, opts.DryRun)
	w.writeTable(ctx, result, workbook.OutcomesTable(result.Outcomes), w.artifactName(opts.OutcomesName, "creation_results", opts.Format))
	w.auditReport(ctx, result)

	w.finish(result, logger)
	return result, nil
}

// Run выполняет полный запуск провижининга.
func (w *Workflow) Run(ctx context.Context, in *workbook.Input, opts RunOptions) (*RunResult, error) {
	result, logger := w.begin(opts)
	logger.Info("Запуск провижининга")

	merged, err := w.merge(in, opts, result)
	if err != nil {
		return nil, err
	}

	result.Preflight = w.checker.Check(ctx, w.dir, merged)
	if result.Preflight.Degraded {
		logger.Warn("Preflight выполнен без проверки дубликатов",
			slog.String("error", result.Preflight.QueryError.Error()),
		)
	}

	result.Outcomes = w.provisioner.Provision(ctx, w.dir, result.Preflight.ToCreate(), opts.DryRun)

	preflight := workbook.PreflightTable(in.Roster.Header, result.Preflight.Decisions)
	final := workbook.FinalTable(preflight, result.Outcomes)

	w.auditReport(ctx, result)

	ids := FilterByProvenance(result.Outcomes, in.Roster.Records, opts.ProvenanceValue)
	validation, err := w.auditor.Validate(ctx, w.dir, ids)
	if err != nil {
		logger.Error("Ошибка валидации созданных пользователей", slog.String("error", err.Error()))
		result.ReportErrors = append(result.ReportErrors, &ReportGenerationError{Stage: "validate", Err: err})
	}
	result.Validation = validation

	w.writeTable(ctx, result, final, w.artifactName(opts.FinalName, "provisioning_report", opts.Format))

	w.finish(result, logger)
	return result, nil
}

// Validate проверяет созданных пользователей из таблицы результатов,
// отобранных по провенансу строк ростера.
func (w *Workflow) Validate(ctx context.Context, outcomes []model.CreationOutcome, roster []model.RosterRecord, provenanceValue string) (*model.ValidationResult, error) {
	ids := FilterByProvenance(outcomes, roster, provenanceValue)
	w.logger.Info("Отобраны пользователи для валидации",
		slog.String("provenance", provenanceValue),
		slog.Int("users", len(ids)),
	)
	return w.auditor.Validate(ctx, w.dir, ids)
}

// Report формирует и записывает отчёт по Id пользователей.
func (w *Workflow) Report(ctx context.Context, ids []string) (*model.AuditReport, string, error) {
	report, err := w.auditor.GenerateReport(ctx, w.dir, ids)
	if err != nil || report == nil {
		return report, "", err
	}
	loc, err := w.writeReport(ctx, report)
	if err != nil {
		return report, "", err
	}
	return report, loc, nil
}

// begin открывает запуск: run_id, время начала, логгер запуска.
func (w *Workflow) begin(opts RunOptions) (*RunResult, *slog.Logger) {
	result := &RunResult{
		Summary: model.RunSummary{
			RunID:       w.newRunID(),
			Environment: opts.Environment.Name,
			DryRun:      opts.DryRun,
			StartedAt:   w.now(),
		},
	}
	logger := w.logger.With(
		slog.String("run_id", result.Summary.RunID),
		slog.String("environment", opts.Environment.Name),
		slog.Bool("dry_run", opts.DryRun),
	)
	return result, logger
}

// merge выполняет объединение; ошибка конфигурации фатальна.
func (w *Workflow) merge(in *workbook.Input, opts RunOptions, result *RunResult) ([]model.MergedRecord, error) {
	if in == nil || in.Roster == nil {
		return nil, fmt.Errorf("%w: нет входных данных", ErrValidation)
	}
	merged, stats, err := w.merger.Merge(in.Roster.Records, in.Personas, in.SSO, opts.Environment)
	if err != nil {
		return nil, err
	}
	result.MergeStats = stats
	return merged, nil
}

// auditReport формирует отчёт по созданным в запуске пользователям.
func (w *Workflow) auditReport(ctx context.Context, result *RunResult) {
	report, loc, err := w.Report(ctx, CreatedIDs(result.Outcomes))
	result.Report = report
	if err != nil {
		w.reportFailed(result, err)
		return
	}
	if loc != "" {
		result.Artifacts = append(result.Artifacts, loc)
	}
}

// writeReport кодирует отчёт в CSV и записывает в приёмник.
func (w *Workflow) writeReport(ctx context.Context, report *model.AuditReport) (string, error) {
	data, contentType, err := workbook.Encode(workbook.AuditTable(report), report.FileName)
	if err != nil {
		return "", &ReportGenerationError{Stage: "encode", Err: err}
	}
	loc, err := w.sink.Put(ctx, report.FileName, contentType, data)
	if err != nil {
		return "", &ReportGenerationError{Stage: "write", Err: err}
	}
	report.Location = loc
	w.logger.Info("Отчёт о созданных пользователях записан",
		slog.String("location", loc),
		slog.Int("users", len(report.Records)),
	)
	return loc, nil
}

// writeTable записывает таблицу артефакта; ошибка не фатальна.
func (w *Workflow) writeTable(ctx context.Context, result *RunResult, t *workbook.Table, name string) {
	data, contentType, err := workbook.Encode(t, name)
	if err != nil {
		w.reportFailed(result, &ReportGenerationError{Stage: "encode", Err: err})
		return
	}
	loc, err := w.sink.Put(ctx, name, contentType, data)
	if err != nil {
		w.reportFailed(result, &ReportGenerationError{Stage: "write", Err: err})
		return
	}
	result.Artifacts = append(result.Artifacts, loc)
	w.logger.Info("Артефакт записан",
		slog.String("location", loc),
		slog.Int("rows", len(t.Rows)),
	)
}

func (w *Workflow) reportFailed(result *RunResult, err error) {
	w.logger.Error("Ошибка формирования артефакта", slog.String("error", err.Error()))
	var rge *ReportGenerationError
	if !errors.As(err, &rge) {
		err = &ReportGenerationError{Stage: "report", Err: err}
	}
	result.ReportErrors = append(result.ReportErrors, err)
}

// artifactName возвращает имя артефакта: заданное или base_<время><format>.
func (w *Workflow) artifactName(name, base, format string) string {
	if name != "" {
		return name
	}
	if format == "" {
		format = ".csv"
	}
	return base + "_" + w.now().Format(artifactTimeLayout) + format
}

// finish подсчитывает итоги запуска и фиксирует длительность.
func (w *Workflow) finish(result *RunResult, logger *slog.Logger) {
	s := &result.Summary
	s.FinishedAt = w.now()
	s.Actions = make(map[string]int)
	s.Statuses = make(map[string]int)
	if result.Preflight != nil {
		for _, d := range result.Preflight.Decisions {
			s.Actions[d.Action]++
		}
	}
	for _, o := range result.Outcomes {
		s.Statuses[o.Status]++
	}
	runDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())

	logger.Info("Запуск завершён",
		slog.Int("create", s.Actions[model.ActionCreate]),
		slog.Int("skip", s.Actions[model.ActionSkipDuplicate]),
		slog.Int("success", s.Statuses[model.StatusSuccess]),
		slog.Int("success_with_errors", s.Statuses[model.StatusSuccessWithErrors]),
		slog.Int("failed", s.Statuses[model.StatusFailed]),
		slog.Int("dry_run", s.Statuses[model.StatusDryRun]),
		slog.Int("report_errors", len(result.ReportErrors)),
	)
}
