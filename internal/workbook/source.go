package workbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/sf-provisioner/internal/domain/model"
)

// Имена CSV-файлов при загрузке из каталога.
const (
	RosterCSV  = "training_template.csv"
	PersonaCSV = "persona_mapping.csv"
	SSOCSV     = "tsso_trainthetrainer.csv"
)

// Sheets — имена листов XLSX-книги.
type Sheets struct {
	Roster  string
	Persona string
	SSO     string
}

// Input — входные данные запуска.
type Input struct {
	Roster   *Roster
	Personas model.PersonaTable
	SSO      model.SSORoster
}

// Load читает входные данные из XLSX-книги (три листа) или каталога
// с тремя CSV-файлами.
func Load(path string, sheets Sheets, provenanceColumn string) (*Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &DataLoadError{Source: path, Err: err}
	}

	var rosterT, personaT, ssoT *Table
	switch {
	case info.IsDir():
		if rosterT, err = ReadTableFile(filepath.Join(path, RosterCSV), ""); err != nil {
			return nil, err
		}
		if personaT, err = ReadTableFile(filepath.Join(path, PersonaCSV), ""); err != nil {
			return nil, err
		}
		if ssoT, err = ReadTableFile(filepath.Join(path, SSOCSV), ""); err != nil {
			return nil, err
		}
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		tables, err := ReadXLSXSheets(path, sheets.Roster, sheets.Persona, sheets.SSO)
		if err != nil {
			return nil, err
		}
		rosterT, personaT, ssoT = tables[sheets.Roster], tables[sheets.Persona], tables[sheets.SSO]
	default:
		return nil, &DataLoadError{Source: path, Err: errors.New("ожидается .xlsx-книга или каталог с CSV")}
	}

	roster, err := ParseRoster(rosterT, provenanceColumn)
	if err != nil {
		return nil, err
	}
	personas, err := ParsePersonas(personaT)
	if err != nil {
		return nil, err
	}
	sso, err := ParseSSO(ssoT)
	if err != nil {
		return nil, err
	}

	return &Input{Roster: roster, Personas: personas, SSO: sso}, nil
}
