// records.go — разбор таблиц ростера, persona mapping и SSO-ростера
// в типизированные записи.
package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
)

// Заголовки колонок входных таблиц.
const (
	ColEmailEmployeeID      = "Email (employee ID version)"
	ColEmailName            = "Email (name version)"
	ColFirstName            = "FirstName"
	ColLastName             = "LastName"
	ColPersonaName          = "Persona Name"
	ColUsername             = "Username"
	ColAlias                = "Alias"
	ColTimeZoneSidKey       = "TimeZoneSidKey"
	ColLocaleSidKey         = "LocaleSidKey"
	ColLanguageLocaleKey    = "LanguageLocaleKey"
	ColEmailEncodingKey     = "EmailEncodingKey"
	ColIsActive             = "IsActive"
	ColInteractionUser      = "UserPermissionsInteractionUser"
	ColFederationIdentifier = "FederationIdentifier"
	ColQueues               = "Queues"
)

// requiredRosterColumns — колонки, без которых ростер не обрабатывается.
var requiredRosterColumns = []string{
	ColEmailEmployeeID, ColEmailName, ColFirstName, ColLastName, ColPersonaName, ColUsername,
}

// rosterFixedColumns — колонки, разбираемые в поля RosterRecord.
var rosterFixedColumns = map[string]struct{}{
	ColEmailEmployeeID: {}, ColEmailName: {}, ColFirstName: {}, ColLastName: {},
	ColPersonaName: {}, ColUsername: {}, ColAlias: {}, ColTimeZoneSidKey: {},
	ColLocaleSidKey: {}, ColLanguageLocaleKey: {}, ColEmailEncodingKey: {},
	ColIsActive: {}, ColInteractionUser: {}, ColFederationIdentifier: {},
}

// Roster — разобранный ростер с исходным заголовком.
type Roster struct {
	Header  []string
	Records []model.RosterRecord
}

// ParseRoster разбирает таблицу ростера. provenanceColumn — колонка
// «кто добавил» (может отсутствовать в таблице).
func ParseRoster(t *Table, provenanceColumn string) (*Roster, error) {
	if _, err := t.Require(requiredRosterColumns...); err != nil {
		return nil, err
	}

	cell := func(row []string, column string) string {
		if i := t.Index(column); i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	roster := &Roster{Header: t.Header, Records: make([]model.RosterRecord, 0, len(t.Rows))}
	for n, row := range t.Rows {
		rowNum := t.RowNumber(n)

		isActive, err := parseOptionalBool(cell(row, ColIsActive))
		if err != nil {
			return nil, &DataLoadError{Source: t.Name, Row: rowNum, Column: ColIsActive, Err: err}
		}
		interaction, err := parseOptionalBool(cell(row, ColInteractionUser))
		if err != nil {
			return nil, &DataLoadError{Source: t.Name, Row: rowNum, Column: ColInteractionUser, Err: err}
		}

		rec := model.RosterRecord{
			Row:                  rowNum,
			EmailEmployeeID:      cell(row, ColEmailEmployeeID),
			EmailName:            cell(row, ColEmailName),
			FirstName:            cell(row, ColFirstName),
			LastName:             cell(row, ColLastName),
			PersonaName:          cell(row, ColPersonaName),
			Username:             cell(row, ColUsername),
			Alias:                cell(row, ColAlias),
			TimeZoneSidKey:       cell(row, ColTimeZoneSidKey),
			LocaleSidKey:         cell(row, ColLocaleSidKey),
			LanguageLocaleKey:    cell(row, ColLanguageLocaleKey),
			EmailEncodingKey:     cell(row, ColEmailEncodingKey),
			IsActive:             isActive == nil || *isActive,
			InteractionUser:      interaction,
			FederationIdentifier: cell(row, ColFederationIdentifier),
			Extra:                make(map[string]string),
		}
		if provenanceColumn != "" {
			rec.AddedBy = cell(row, provenanceColumn)
		}

		for i, h := range t.Header {
			if _, fixed := rosterFixedColumns[h]; fixed || h == "" {
				continue
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				rec.Extra[h] = v
			}
		}

		roster.Records = append(roster.Records, rec)
	}

	return roster, nil
}

// ParsePersonas разбирает persona mapping. Строки без имени persona пропускаются.
func ParsePersonas(t *Table) (model.PersonaTable, error) {
	idx, err := t.Require(ColPersonaName)
	if err != nil {
		return model.PersonaTable{}, err
	}
	queuesIdx := t.Index(ColQueues)

	table := model.PersonaTable{
		Columns:  t.Header,
		Personas: make([]model.PersonaMapping, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		name := strings.TrimSpace(row[idx[ColPersonaName]])
		if name == "" {
			continue
		}

		p := model.PersonaMapping{Name: name, Values: make(map[string]string, len(t.Header))}
		for i, h := range t.Header {
			if v := strings.TrimSpace(row[i]); v != "" {
				p.Values[h] = v
			}
		}
		if queuesIdx >= 0 {
			// Перевод строки внутри ячейки — разделитель очередей, trim только по краям.
			if q := strings.Trim(row[queuesIdx], " \t\r\n"); q != "" {
				p.Queues = &q
			}
		}
		table.Personas = append(table.Personas, p)
	}
	return table, nil
}

// ParseSSO разбирает SSO-ростер: множество email (employee ID version).
func ParseSSO(t *Table) (model.SSORoster, error) {
	idx, err := t.Require(ColEmailEmployeeID)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		emails = append(emails, strings.TrimSpace(row[idx[ColEmailEmployeeID]]))
	}
	return model.NewSSORoster(emails), nil
}

// parseOptionalBool разбирает булеву ячейку; пустая ячейка — nil.
func parseOptionalBool(s string) (*bool, error) {
	var v bool
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "true", "1", "yes", "y":
		v = true
	case "false", "0", "no", "n":
		v = false
	default:
		return nil, fmt.Errorf("%w: %q", errInvalidBool, s)
	}
	return &v, nil
}

var errInvalidBool = errors.New("ожидается булево значение (true/false)")
