package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

// memorySink — приёмник артефактов в памяти.
type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemorySink() *memorySink {
	return &memorySink{files: make(map[string][]byte)}
}

func (s *memorySink) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.files[name] = data
	return "mem://" + name, nil
}

// table читает записанный CSV-артефакт.
func (s *memorySink) table(t *testing.T, name string) *workbook.Table {
	t.Helper()
	s.mu.Lock()
	data, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("артефакт %q не записан", name)
	}
	tbl, err := workbook.ReadCSV(name, data)
	if err != nil {
		t.Fatalf("ReadCSV(%s): %v", name, err)
	}
	return tbl
}

// workflowInput — три строки ростера, первая уже существует в каталоге.
func workflowInput() *workbook.Input {
	records := []model.RosterRecord{
		rosterRecord(1, "Kelli", "Brunt", "Tier 1 Supervisor"),
		rosterRecord(2, "Tina", "Cooper", "Tier 1 Rep - English"),
		rosterRecord(3, "Omar", "Diaz", "Tier 1 Rep - English"),
	}
	records[0].AddedBy = "Josh"
	records[1].AddedBy = "Not Josh"
	records[2].AddedBy = "Josh"

	return &workbook.Input{
		Roster: &workbook.Roster{
			Header:  []string{workbook.ColEmailName, workbook.ColFirstName, workbook.ColLastName, workbook.ColPersonaName, workbook.ColUsername},
			Records: records,
		},
		Personas: personaTable(),
		SSO:      model.NewSSORoster([]string{"cooper@emp.example.org"}),
	}
}

// workflowDirectory — каталог для полного запуска: дубликат Brunt,
// очереди Queue A/B, User.Create с последовательными Id.
func workflowDirectory(t *testing.T, existingEmail string) *fakeDirectory {
	var mu sync.Mutex
	created := map[string]string{}
	dir := &fakeDirectory{}
	dir.createFn = func(_ context.Context, sobject string, payload any) (*salesforce.SaveResult, error) {
		if sobject != "User" {
			return &salesforce.SaveResult{ID: sobjectPrefix(sobject) + "X", Success: true}, nil
		}
		u := payload.(salesforce.UserCreate)
		id := "005" + strings.ToUpper(u.LastName)
		mu.Lock()
		created[id] = u.Username
		mu.Unlock()
		return &salesforce.SaveResult{ID: id, Success: true}, nil
	}
	dir.queryAllFn = func(_ context.Context, soql string) (*salesforce.QueryResult, error) {
		switch {
		case strings.Contains(soql, "FROM Group"):
			return queryResult(t,
				map[string]string{"Id": "00GA", "Name": "Queue A"},
				map[string]string{"Id": "00GB", "Name": "Queue B"},
			), nil
		case strings.HasPrefix(soql, "SELECT Id, Email, Username FROM User"):
			return queryResult(t, map[string]any{"Id": "005EXIST", "Email": existingEmail, "Username": "other"}), nil
		default:
			mu.Lock()
			defer mu.Unlock()
			var records []any
			for id, username := range created {
				if strings.Contains(soql, "'"+id+"'") {
					records = append(records, map[string]any{"Id": id, "Username": username, "IsActive": true})
				}
			}
			return queryResult(t, records...), nil
		}
	}
	return dir
}

func newTestWorkflow(dir Directory, sink *memorySink) *Workflow {
	w := NewWorkflow(dir, sink, nil, testLogger())
	fixed := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	w.auditor.now = w.now
	w.newRunID = func() string { return "run-1" }
	return w
}

// TestWorkflow_Run_Live — полный запуск: дубликат пропускается, двое
// создаются, отчёт и итоговая таблица записаны, валидация по провенансу.
func TestWorkflow_Run_Live(t *testing.T) {
	in := workflowInput()
	dir := workflowDirectory(t, in.Roster.Records[0].EmailName)
	sink := newMemorySink()

	result, err := newTestWorkflow(dir, sink).Run(context.Background(), in, RunOptions{
		Environment:     trainingEnv,
		ProvenanceValue: "Josh",
		FinalName:       "final_report.csv",
	})
	if err != nil {
		t.Fatalf("Run ошибка: %v", err)
	}

	if result.Summary.RunID != "run-1" || result.Summary.Environment != "Training" {
		t.Errorf("Summary = %+v", result.Summary)
	}
	if got := result.Summary.Actions[model.ActionSkipDuplicate]; got != 1 {
		t.Errorf("пропущено %d, ожидалось 1", got)
	}
	if got := result.Summary.Statuses[model.StatusSuccess]; got != 2 {
		t.Errorf("создано %d, ожидалось 2 (%+v)", got, result.Outcomes)
	}
	if n := len(dir.createsOf("User")); n != 2 {
		t.Errorf("вызовов создания User %d, ожидалось 2", n)
	}

	// Tina — SSO: FederationIdentifier отправлен; очереди назначены.
	for _, c := range dir.createsOf("User") {
		u := c.payload.(salesforce.UserCreate)
		if (u.LastName == "Cooper") != (u.FederationIdentifier != nil) {
			t.Errorf("FederationIdentifier для %s = %v", u.LastName, u.FederationIdentifier)
		}
	}
	if n := len(dir.createsOf("GroupMember")); n != 4 {
		t.Errorf("членств в очередях %d, ожидалось 4", n)
	}

	// Валидация — только строка Diaz (added by Josh и создана).
	if result.Validation == nil || !reflect.DeepEqual(result.Validation.Requested, []string{"005DIAZ"}) {
		t.Errorf("Validation = %+v", result.Validation)
	}

	if result.Report == nil || len(result.Report.Records) != 2 {
		t.Fatalf("Report = %+v", result.Report)
	}
	report := sink.table(t, "user_creation_report_20261015_093000.csv")
	if len(report.Rows) != 2 {
		t.Errorf("строк отчёта %d, ожидалось 2", len(report.Rows))
	}

	final := sink.table(t, "final_report.csv")
	if len(final.Rows) != 3 {
		t.Fatalf("строк итоговой таблицы %d, ожидалось 3", len(final.Rows))
	}
	action, status, id := final.Index(workbook.ColAction), final.Index(workbook.ColStatus), final.Index(workbook.ColSalesforceID)
	if final.Rows[0][action] != model.ActionSkipDuplicate || final.Rows[0][status] != "" {
		t.Errorf("строка 0 = %q", final.Rows[0])
	}
	if final.Rows[1][status] != model.StatusSuccess || final.Rows[1][id] != "005COOPER" {
		t.Errorf("строка 1 = %q", final.Rows[1])
	}
	if len(result.ReportErrors) != 0 {
		t.Errorf("ReportErrors = %v", result.ReportErrors)
	}
}

// TestWorkflow_Run_DryRun — в dry run только запрос дубликатов, без создания
// и без отчёта.
func TestWorkflow_Run_DryRun(t *testing.T) {
	in := workflowInput()
	dir := workflowDirectory(t, "nobody@example.org")
	sink := newMemorySink()

	result, err := newTestWorkflow(dir, sink).Run(context.Background(), in, RunOptions{
		Environment: trainingEnv,
		DryRun:      true,
	})
	if err != nil {
		t.Fatalf("Run ошибка: %v", err)
	}

	if len(dir.creates) != 0 {
		t.Errorf("вызовов Create %d в dry run", len(dir.creates))
	}
	if len(dir.queries) != 1 {
		t.Errorf("запросов %d, ожидался только запрос дубликатов", len(dir.queries))
	}
	if got := result.Summary.Statuses[model.StatusDryRun]; got != 3 {
		t.Errorf("dry run результатов %d, ожидалось 3", got)
	}
	if result.Report != nil {
		t.Error("отчёт не должен формироваться без созданных пользователей")
	}
	if _, ok := sink.files["provisioning_report_20261015_093000.csv"]; !ok {
		t.Errorf("итоговая таблица не записана: %v", sink.files)
	}
}

// TestWorkflow_Run_ConfigurationError — ошибка конфигурации фатальна и
// возникает до обращений к каталогу.
func TestWorkflow_Run_ConfigurationError(t *testing.T) {
	in := workflowInput()
	dir := workflowDirectory(t, "")
	sink := newMemorySink()

	_, err := newTestWorkflow(dir, sink).Run(context.Background(), in, RunOptions{
		Environment: config.TemplateColumns("Prod"),
	})

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ожидалась ConfigurationError, получено %v", err)
	}
	if dir.calls() != 0 || len(sink.files) != 0 {
		t.Errorf("вызовов %d, артефактов %d — ожидалось 0", dir.calls(), len(sink.files))
	}
}

// TestWorkflow_Run_SinkFailure — ошибка записи не фатальна и не
// откатывает созданных пользователей.
func TestWorkflow_Run_SinkFailure(t *testing.T) {
	in := workflowInput()
	dir := workflowDirectory(t, "")
	sink := newMemorySink()
	sink.err = errors.New("disk full")

	result, err := newTestWorkflow(dir, sink).Run(context.Background(), in, RunOptions{Environment: trainingEnv})
	if err != nil {
		t.Fatalf("Run ошибка: %v", err)
	}
	if len(result.ReportErrors) != 2 {
		t.Fatalf("ReportErrors = %v, ожидалось 2 (отчёт и итоговая таблица)", result.ReportErrors)
	}
	for _, e := range result.ReportErrors {
		var rgErr *ReportGenerationError
		if !errors.As(e, &rgErr) {
			t.Errorf("ошибка %v не ReportGenerationError", e)
		}
	}
	if got := result.Summary.Statuses[model.StatusSuccess]; got != 3 {
		t.Errorf("создано %d, ожидалось 3", got)
	}
}

// TestWorkflow_CreateUsers — создаются только строки "Create New User"
// из таблицы preflight; без каталога в dry run.
func TestWorkflow_CreateUsers(t *testing.T) {
	in := workflowInput()
	toCreate := map[string]struct{}{in.Roster.Records[1].Username: {}}

	t.Run("live", func(t *testing.T) {
		dir := workflowDirectory(t, "")
		sink := newMemorySink()

		result, err := newTestWorkflow(dir, sink).CreateUsers(context.Background(), in, toCreate, RunOptions{
			Environment:  trainingEnv,
			OutcomesName: "results.csv",
		})
		if err != nil {
			t.Fatalf("CreateUsers ошибка: %v", err)
		}
		if len(result.Outcomes) != 1 || result.Outcomes[0].SalesforceID != "005COOPER" {
			t.Fatalf("Outcomes = %+v", result.Outcomes)
		}
		payload := dir.createsOf("User")[0].payload.(salesforce.UserCreate)
		if payload.Email != in.Roster.Records[1].EmailName || *payload.ProfileID != "00eREP" {
			t.Errorf("payload = %+v", payload)
		}
		outcomes, err := workbook.ParseOutcomes(sink.table(t, "results.csv"))
		if err != nil {
			t.Fatalf("ParseOutcomes: %v", err)
		}
		if outcomes[0].Status != model.StatusSuccess {
			t.Errorf("Status в артефакте = %q", outcomes[0].Status)
		}
	})

	t.Run("dry run без каталога", func(t *testing.T) {
		sink := newMemorySink()
		result, err := newTestWorkflow(nil, sink).CreateUsers(context.Background(), in, toCreate, RunOptions{
			Environment: trainingEnv,
			DryRun:      true,
		})
		if err != nil {
			t.Fatalf("CreateUsers ошибка: %v", err)
		}
		if result.Outcomes[0].Status != model.StatusDryRun {
			t.Errorf("Status = %q", result.Outcomes[0].Status)
		}
	})
}

// TestWorkflow_Preflight — таблица preflight содержит колонки объединения
// и решения.
func TestWorkflow_Preflight(t *testing.T) {
	in := workflowInput()
	dir := workflowDirectory(t, in.Roster.Records[0].EmailName)
	sink := newMemorySink()

	result, err := newTestWorkflow(dir, sink).Preflight(context.Background(), in, RunOptions{
		Environment:   trainingEnv,
		PreflightName: "preflight.csv",
	})
	if err != nil {
		t.Fatalf("Preflight ошибка: %v", err)
	}
	if result.Preflight.Count(model.ActionCreate) != 2 {
		t.Errorf("к созданию %d, ожидалось 2", result.Preflight.Count(model.ActionCreate))
	}

	tbl := sink.table(t, "preflight.csv")
	usernames, err := workbook.UsernamesToCreate(tbl)
	if err != nil {
		t.Fatalf("UsernamesToCreate: %v", err)
	}
	want := map[string]struct{}{in.Roster.Records[1].Username: {}, in.Roster.Records[2].Username: {}}
	if !reflect.DeepEqual(usernames, want) {
		t.Errorf("usernames = %v", usernames)
	}
	sso := tbl.Index(workbook.ColEnableSSO)
	if tbl.Rows[1][sso] != "true" || tbl.Rows[0][sso] != "false" {
		t.Errorf("EnableSSO = %q / %q", tbl.Rows[0][sso], tbl.Rows[1][sso])
	}
}
