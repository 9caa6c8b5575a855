package service

import (
	"errors"
	"testing"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
)

// TestMerger_Merge_PartialMapping — три кандидата, mapping покрывает две
// persona из трёх, SSO-ростер из одного email.
func TestMerger_Merge_PartialMapping(t *testing.T) {
	roster := []model.RosterRecord{
		rosterRecord(1, "Kelli", "Brunt", "Tier 1 Supervisor"),
		rosterRecord(2, "Tina", "Cooper", "Tier 1 Rep - English"),
		rosterRecord(3, "Omar", "Diaz", "Tier 2 Rep - Spanish"),
	}
	sso := model.NewSSORoster([]string{"cooper@emp.example.org"})

	merged, stats, err := NewMerger(testLogger()).Merge(roster, personaTable(), sso, trainingEnv)
	if err != nil {
		t.Fatalf("Merge ошибка: %v", err)
	}

	if len(merged) != len(roster) {
		t.Fatalf("len(merged) = %d, ожидалось %d", len(merged), len(roster))
	}
	for i := range roster {
		if merged[i].Username != roster[i].Username {
			t.Errorf("merged[%d].Username = %q, порядок нарушен", i, merged[i].Username)
		}
	}

	if got := merged[0].ProfileID; got == nil || *got != "00eSUP" {
		t.Errorf("supervisor ProfileID = %v, ожидался 00eSUP", got)
	}
	if merged[0].PermissionSetGroupIDs != nil {
		t.Errorf("пустая ячейка PSG должна давать nil, получено %q", *merged[0].PermissionSetGroupIDs)
	}
	if got := merged[1].PermissionSetGroupIDs; got == nil || *got != "0PGa;0PGb" {
		t.Errorf("rep PSG = %v", got)
	}
	if got := merged[1].Queues; got == nil || *got != "Queue A\nQueue B" {
		t.Errorf("rep Queues = %v", got)
	}

	unmatched := merged[2]
	if unmatched.PersonaMatched {
		t.Error("PersonaMatched = true для неизвестной persona")
	}
	if unmatched.ProfileID != nil || unmatched.RoleID != nil || unmatched.PermissionSetGroupIDs != nil ||
		unmatched.ContactCenterID != nil || unmatched.Queues != nil {
		t.Errorf("несопоставленная строка должна иметь nil-поля: %+v", unmatched.PersonaPermissions)
	}

	for i, want := range []bool{false, true, false} {
		if merged[i].EnableSSO != want {
			t.Errorf("merged[%d].EnableSSO = %v, ожидалось %v", i, merged[i].EnableSSO, want)
		}
	}

	if stats.Total != 3 || stats.Unmatched != 1 || stats.SSO != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// TestMerger_Merge_MissingEnvironmentColumn — нет колонки окружения:
// ConfigurationError, записи не возвращаются.
func TestMerger_Merge_MissingEnvironmentColumn(t *testing.T) {
	personas := personaTable()
	var cols []string
	for _, c := range personas.Columns {
		if c != trainingEnv.RoleID {
			cols = append(cols, c)
		}
	}
	personas.Columns = cols

	roster := []model.RosterRecord{rosterRecord(1, "Tina", "Cooper", "Tier 1 Rep - English")}
	merged, _, err := NewMerger(testLogger()).Merge(roster, personas, nil, trainingEnv)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ожидалась ConfigurationError, получено %v", err)
	}
	if cfgErr.Column != trainingEnv.RoleID {
		t.Errorf("Column = %q, ожидалось %q", cfgErr.Column, trainingEnv.RoleID)
	}
	if merged != nil {
		t.Errorf("при ошибке конфигурации записи не возвращаются, получено %d", len(merged))
	}
}

// TestMerger_Merge_CaseSensitive — соединение по persona и SSO регистрозависимо.
func TestMerger_Merge_CaseSensitive(t *testing.T) {
	rec := rosterRecord(1, "Tina", "Cooper", "tier 1 rep - english")
	sso := model.NewSSORoster([]string{"COOPER@emp.example.org"})

	merged, stats, err := NewMerger(testLogger()).Merge([]model.RosterRecord{rec}, personaTable(), sso, trainingEnv)
	if err != nil {
		t.Fatalf("Merge ошибка: %v", err)
	}
	if merged[0].PersonaMatched {
		t.Error("persona в другом регистре не должна сопоставляться")
	}
	if merged[0].EnableSSO {
		t.Error("email в другом регистре не должен включать SSO")
	}
	if stats.Unmatched != 1 {
		t.Errorf("Unmatched = %d, ожидалось 1", stats.Unmatched)
	}
}

// TestMerger_Merge_DuplicatePersona — повтор persona: первое вхождение,
// количество строк не меняется.
func TestMerger_Merge_DuplicatePersona(t *testing.T) {
	personas := personaTable()
	personas.Personas = append(personas.Personas, model.PersonaMapping{
		Name: "Tier 1 Supervisor",
		Values: map[string]string{
			trainingEnv.ProfileID: "00eOTHER",
		},
	})

	roster := []model.RosterRecord{rosterRecord(1, "Kelli", "Brunt", "Tier 1 Supervisor")}
	merged, stats, err := NewMerger(testLogger()).Merge(roster, personas, nil, trainingEnv)
	if err != nil {
		t.Fatalf("Merge ошибка: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, ожидалось 1", len(merged))
	}
	if got := *merged[0].ProfileID; got != "00eSUP" {
		t.Errorf("ProfileID = %q, ожидалось первое вхождение 00eSUP", got)
	}
	if stats.DuplicatePersonas != 1 {
		t.Errorf("DuplicatePersonas = %d, ожидалось 1", stats.DuplicatePersonas)
	}
}

// TestMerger_Merge_EmptyRoster — пустой ростер даёт пустой результат без ошибки.
func TestMerger_Merge_EmptyRoster(t *testing.T) {
	merged, stats, err := NewMerger(testLogger()).Merge(nil, personaTable(), nil, trainingEnv)
	if err != nil {
		t.Fatalf("Merge ошибка: %v", err)
	}
	if len(merged) != 0 || stats.Total != 0 {
		t.Errorf("ожидался пустой результат, получено %d записей", len(merged))
	}
}
