// fake_directory_test.go — in-memory Directory и фикстуры для тестов конвейера.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/domain/model"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// --- Mock directory ---

// createCall — зафиксированный вызов Create.
type createCall struct {
	sobject string
	payload any
}

// fakeDirectory — мок Directory с func-полями и журналом вызовов.
type fakeDirectory struct {
	queryFn    func(ctx context.Context, soql string) (*salesforce.QueryResult, error)
	queryAllFn func(ctx context.Context, soql string) (*salesforce.QueryResult, error)
	createFn   func(ctx context.Context, sobject string, payload any) (*salesforce.SaveResult, error)

	mu      sync.Mutex
	queries []string
	creates []createCall
	nextID  int
}

func (f *fakeDirectory) Query(ctx context.Context, soql string) (*salesforce.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, soql)
	f.mu.Unlock()
	if f.queryFn != nil {
		return f.queryFn(ctx, soql)
	}
	return &salesforce.QueryResult{Done: true}, nil
}

func (f *fakeDirectory) QueryAll(ctx context.Context, soql string) (*salesforce.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, soql)
	f.mu.Unlock()
	if f.queryAllFn != nil {
		return f.queryAllFn(ctx, soql)
	}
	return &salesforce.QueryResult{Done: true}, nil
}

func (f *fakeDirectory) Create(ctx context.Context, sobject string, payload any) (*salesforce.SaveResult, error) {
	f.mu.Lock()
	f.creates = append(f.creates, createCall{sobject: sobject, payload: payload})
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, sobject, payload)
	}
	return &salesforce.SaveResult{ID: fmt.Sprintf("%s%04d", sobjectPrefix(sobject), id), Success: true}, nil
}

// calls возвращает общее количество обращений к каталогу.
func (f *fakeDirectory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries) + len(f.creates)
}

// createsOf возвращает вызовы Create для sobject.
func (f *fakeDirectory) createsOf(sobject string) []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []createCall
	for _, c := range f.creates {
		if c.sobject == sobject {
			out = append(out, c)
		}
	}
	return out
}

func sobjectPrefix(sobject string) string {
	switch sobject {
	case "User":
		return "005"
	case "PermissionSetAssignment":
		return "0Pa"
	case "GroupMember":
		return "011"
	default:
		return "000"
	}
}

// --- Фикстуры ---

// testLogger — логгер, подавляющий вывод ниже ERROR.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// queryResult собирает QueryResult из записей (сериализуются в JSON).
func queryResult(t *testing.T, records ...any) *salesforce.QueryResult {
	t.Helper()
	res := &salesforce.QueryResult{TotalSize: len(records), Done: true}
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		res.Records = append(res.Records, raw)
	}
	return res
}

// trainingEnv — колонки окружения Training по стандартной схеме.
var trainingEnv = config.TemplateColumns("Training")

// rosterRecord создаёт строку ростера с заполненными обязательными полями.
func rosterRecord(row int, first, last, persona string) model.RosterRecord {
	login := strings.ToLower(first + "." + last)
	return model.RosterRecord{
		Row:               row,
		EmailEmployeeID:   strings.ToLower(last) + "@emp.example.org",
		EmailName:         login + "@example.org",
		FirstName:         first,
		LastName:          last,
		PersonaName:       persona,
		Username:          login + "@example.org.training",
		Alias:             strings.ToLower(first[:1] + last),
		TimeZoneSidKey:    "America/Chicago",
		LocaleSidKey:      "en_US",
		LanguageLocaleKey: "en_US",
		EmailEncodingKey:  "UTF-8",
		IsActive:          true,
		Extra:             map[string]string{},
	}
}

// personaTable — persona mapping окружения Training с двумя persona.
func personaTable() model.PersonaTable {
	cols := append([]string{"Persona Name", "Queues"}, trainingEnv.Labels()...)
	return model.PersonaTable{
		Columns: cols,
		Personas: []model.PersonaMapping{
			{
				Name:   "Tier 1 Rep - English",
				Queues: strPtr("Queue A\nQueue B"),
				Values: map[string]string{
					"Persona Name":                    "Tier 1 Rep - English",
					trainingEnv.ProfileID:             "00eREP",
					trainingEnv.RoleID:                "00EREP",
					trainingEnv.PermissionSetGroupIDs: "0PGa;0PGb",
					trainingEnv.ContactCenterID:       "cc-1",
				},
			},
			{
				Name: "Tier 1 Supervisor",
				Values: map[string]string{
					"Persona Name":        "Tier 1 Supervisor",
					trainingEnv.ProfileID: "00eSUP",
					trainingEnv.RoleID:    "00ESUP",
				},
			},
		},
	}
}

// mergedRecord — объединённая строка с заданными назначениями.
func mergedRecord(rec model.RosterRecord, psg, queues *string) model.MergedRecord {
	return model.MergedRecord{
		RosterRecord:   rec,
		PersonaMatched: true,
		PersonaPermissions: model.PersonaPermissions{
			ProfileID:             strPtr("00eREP"),
			RoleID:                strPtr("00EREP"),
			PermissionSetGroupIDs: psg,
		},
		Queues: queues,
	}
}
