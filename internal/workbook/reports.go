// reports.go — таблицы артефактов: preflight, результаты создания,
// отчёт о созданных пользователях, итоговый отчёт провижининга.
// Заголовки и строковые значения читаются последующими командами как есть.
package workbook

import (
	"strconv"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
)

// Колонки артефактов.
const (
	ColAction                = "Action"
	ColNotes                 = "Notes"
	ColStatus                = "Status"
	ColSalesforceID          = "SalesforceId"
	ColError                 = "Error"
	ColAssignmentErrors      = "AssignmentErrors"
	ColProfileID             = "ProfileID"
	ColRoleID                = "RoleID"
	ColPermissionSetGroupIDs = "PermissionSetGroupIDs"
	ColContactCenterID       = "ContactCenterID"
	ColEnableSSO             = "EnableSSO"
)

// mergedColumns — колонки, добавляемые объединением к колонкам ростера.
var mergedColumns = []string{
	ColQueues, ColProfileID, ColRoleID, ColPermissionSetGroupIDs, ColContactCenterID, ColEnableSSO,
}

// OutcomeColumns — колонки результатов создания.
var OutcomeColumns = []string{ColUsername, ColStatus, ColSalesforceID, ColError, ColAssignmentErrors}

// AuditColumns — колонки отчёта о созданных пользователях.
var AuditColumns = []string{
	"Id", "Username", "Name", "Email", "FederationIdentifier", "IsActive", "ProfileName", "UserRoleName",
}

// PreflightTable строит таблицу preflight: колонки ростера, колонки
// объединения, Action и Notes.
func PreflightTable(rosterHeader []string, decisions []model.PreflightDecision) *Table {
	header := make([]string, 0, len(rosterHeader)+len(mergedColumns)+2)
	header = append(header, rosterHeader...)
	header = append(header, mergedColumns...)
	header = append(header, ColAction, ColNotes)

	t := NewTable("preflight", header)
	for _, d := range decisions {
		row := make([]string, 0, len(header))
		for _, h := range rosterHeader {
			row = append(row, rosterCell(d.RosterRecord, h))
		}
		row = append(row,
			deref(d.Queues),
			deref(d.ProfileID),
			deref(d.RoleID),
			deref(d.PermissionSetGroupIDs),
			deref(d.ContactCenterID),
			strconv.FormatBool(d.EnableSSO),
			d.Action,
			d.Notes,
		)
		t.Append(row)
	}
	return t
}

// OutcomesTable строит таблицу результатов создания.
func OutcomesTable(outcomes []model.CreationOutcome) *Table {
	t := NewTable("outcomes", OutcomeColumns)
	for _, o := range outcomes {
		t.Append([]string{o.Username, o.Status, o.SalesforceID, o.Error, o.AssignmentErrors})
	}
	return t
}

// AuditTable строит таблицу отчёта о созданных пользователях.
func AuditTable(report *model.AuditReport) *Table {
	t := NewTable(report.FileName, AuditColumns)
	for _, r := range report.Records {
		t.Append([]string{
			r.ID, r.Username, r.Name, r.Email, r.FederationIdentifier,
			strconv.FormatBool(r.IsActive), r.ProfileName, r.UserRoleName,
		})
	}
	return t
}

// FinalTable дополняет таблицу preflight колонками результатов,
// сопоставляя строки по Username. Строки без результата (пропущенные
// дубликаты) получают пустые значения.
func FinalTable(preflight *Table, outcomes []model.CreationOutcome) *Table {
	byUsername := make(map[string]model.CreationOutcome, len(outcomes))
	for _, o := range outcomes {
		if _, ok := byUsername[o.Username]; !ok {
			byUsername[o.Username] = o
		}
	}

	header := make([]string, 0, len(preflight.Header)+len(OutcomeColumns)-1)
	header = append(header, preflight.Header...)
	header = append(header, OutcomeColumns[1:]...)

	userIdx := preflight.Index(ColUsername)
	t := NewTable("final", header)
	for _, row := range preflight.Rows {
		out := make([]string, 0, len(header))
		out = append(out, row...)
		var o model.CreationOutcome
		if userIdx >= 0 {
			o = byUsername[row[userIdx]]
		}
		out = append(out, o.Status, o.SalesforceID, o.Error, o.AssignmentErrors)
		t.Append(out)
	}
	return t
}

// UsernamesToCreate читает таблицу preflight и возвращает Username строк
// с действием "Create New User".
func UsernamesToCreate(t *Table) (map[string]struct{}, error) {
	idx, err := t.Require(ColUsername, ColAction)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, row := range t.Rows {
		if strings.TrimSpace(row[idx[ColAction]]) == model.ActionCreate {
			out[strings.TrimSpace(row[idx[ColUsername]])] = struct{}{}
		}
	}
	return out, nil
}

// ParseOutcomes читает таблицу результатов создания.
func ParseOutcomes(t *Table) ([]model.CreationOutcome, error) {
	idx, err := t.Require(ColUsername, ColStatus)
	if err != nil {
		return nil, err
	}
	cell := func(row []string, column string) string {
		if i := t.Index(column); i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	out := make([]model.CreationOutcome, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, model.CreationOutcome{
			Username:         strings.TrimSpace(row[idx[ColUsername]]),
			Status:           strings.TrimSpace(row[idx[ColStatus]]),
			SalesforceID:     cell(row, ColSalesforceID),
			Error:            cell(row, ColError),
			AssignmentErrors: cell(row, ColAssignmentErrors),
		})
	}
	return out, nil
}

// ValidationTable строит таблицу валидации: найденные пользователи
// и не найденные Id. Колонка Check — OK, Inactive или Missing.
func ValidationTable(v *model.ValidationResult) *Table {
	t := NewTable("validation", []string{"Id", "Username", "IsActive", "ProfileId", "UserRoleId", "FederationIdentifier", "Check"})
	for _, u := range v.Found {
		check := "OK"
		if !u.IsActive {
			check = "Inactive"
		}
		t.Append([]string{u.ID, u.Username, strconv.FormatBool(u.IsActive), u.ProfileID, u.UserRoleID, u.FederationIdentifier, check})
	}
	for _, id := range v.Missing {
		t.Append([]string{id, "", "", "", "", "", "Missing"})
	}
	return t
}

// PermissionSetUsersTable строит таблицу пользователей permission set.
func PermissionSetUsersTable(users []model.PermissionSetUser) *Table {
	t := NewTable("permission_set_users", []string{"Name", "Email", "ProfileName"})
	for _, u := range users {
		t.Append([]string{u.Name, u.Email, u.ProfileName})
	}
	return t
}

// NamedChangesTable строит таблицу объектов с датой последнего изменения.
func NamedChangesTable(items []model.NamedChange) *Table {
	t := NewTable("named_changes", []string{"Name", "LastModifiedDate"})
	for _, it := range items {
		t.Append([]string{it.Name, it.LastModifiedDate})
	}
	return t
}

// ConnectedAppTable строит таблицу сведений о connected app.
func ConnectedAppTable(app *model.ConnectedAppDetails) *Table {
	t := NewTable("connected_app", []string{"Name", "DeveloperName", "StartUrl", "MobileStartUrl"})
	t.Append([]string{app.Name, app.DeveloperName, app.StartURL, app.MobileStartURL})
	return t
}

// rosterCell возвращает значение колонки ростера для записи.
func rosterCell(r model.RosterRecord, column string) string {
	switch column {
	case ColEmailEmployeeID:
		return r.EmailEmployeeID
	case ColEmailName:
		return r.EmailName
	case ColFirstName:
		return r.FirstName
	case ColLastName:
		return r.LastName
	case ColPersonaName:
		return r.PersonaName
	case ColUsername:
		return r.Username
	case ColAlias:
		return r.Alias
	case ColTimeZoneSidKey:
		return r.TimeZoneSidKey
	case ColLocaleSidKey:
		return r.LocaleSidKey
	case ColLanguageLocaleKey:
		return r.LanguageLocaleKey
	case ColEmailEncodingKey:
		return r.EmailEncodingKey
	case ColIsActive:
		return strconv.FormatBool(r.IsActive)
	case ColInteractionUser:
		if r.InteractionUser == nil {
			return ""
		}
		return strconv.FormatBool(*r.InteractionUser)
	case ColFederationIdentifier:
		return r.FederationIdentifier
	default:
		return r.Extra[column]
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
