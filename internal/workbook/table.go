// Пакет workbook — чтение входных таблиц (CSV с определением кодировки, XLSX)
// и формирование выходных таблиц артефактов.
// table.go — универсальная таблица «заголовок + строки» и её чтение/запись.
package workbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Типы содержимого артефактов.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Table — таблица с заголовком. Все строки выровнены по длине заголовка.
type Table struct {
	// Name — источник таблицы (файл или лист) для сообщений об ошибках
	Name   string
	Header []string
	Rows   [][]string

	// lines — номера строк Rows в источнике (1-based, без заголовка, с учётом пустых строк)
	lines []int
}

// NewTable создаёт пустую таблицу с заголовком.
func NewTable(name string, header []string) *Table {
	return &Table{Name: name, Header: header}
}

// Append добавляет строку, выравнивая её по заголовку.
func (t *Table) Append(row []string) {
	t.Rows = append(t.Rows, fitRow(row, len(t.Header)))
}

// RowNumber возвращает номер строки Rows[i] в источнике: пустые строки
// учитываются, заголовок нет. Для таблиц, собранных через Append, это i+1.
func (t *Table) RowNumber(i int) int {
	if i < len(t.lines) {
		return t.lines[i]
	}
	return i + 1
}

// Index возвращает позицию колонки или -1.
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// Require проверяет наличие колонок и возвращает их позиции.
func (t *Table) Require(columns ...string) (map[string]int, error) {
	idx := make(map[string]int, len(columns))
	for _, c := range columns {
		i := t.Index(c)
		if i < 0 {
			return nil, &DataLoadError{Source: t.Name, Column: c, Err: errors.New("обязательная колонка отсутствует")}
		}
		idx[c] = i
	}
	return idx, nil
}

// ReadCSV читает CSV, приводя кодировку к UTF-8.
// Пустые строки пропускаются, заголовки очищаются от пробелов.
func ReadCSV(name string, data []byte) (*Table, error) {
	decoded, _, err := decodeText(data)
	if err != nil {
		return nil, &DataLoadError{Source: name, Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// csv.Reader пропускает пустые строки, поэтому номера берутся из FieldPos
	var records [][]string
	var lines []int
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataLoadError{Source: name, Err: fmt.Errorf("разбор CSV: %w", err)}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return fromRows(name, records, lines)
}

// ReadXLSXSheets читает листы XLSX-книги.
func ReadXLSXSheets(path string, sheets ...string) (map[string]*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &DataLoadError{Source: path, Err: fmt.Errorf("открытие книги: %w", err)}
	}
	defer f.Close()

	out := make(map[string]*Table, len(sheets))
	for _, sheet := range sheets {
		name := filepath.Base(path) + "/" + sheet
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			return nil, &DataLoadError{Source: name, Err: errors.New("лист не найден")}
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &DataLoadError{Source: name, Err: fmt.Errorf("чтение листа: %w", err)}
		}
		t, err := fromRows(name, rows, nil)
		if err != nil {
			return nil, err
		}
		out[sheet] = t
	}
	return out, nil
}

// ReadTableFile читает таблицу из .csv или .xlsx (первый лист либо sheet).
func ReadTableFile(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &DataLoadError{Source: path, Err: err}
		}
		return ReadCSV(filepath.Base(path), data)
	case ".xlsx":
		if sheet == "" {
			first, err := firstSheet(path)
			if err != nil {
				return nil, err
			}
			sheet = first
		}
		tables, err := ReadXLSXSheets(path, sheet)
		if err != nil {
			return nil, err
		}
		return tables[sheet], nil
	default:
		return nil, &DataLoadError{Source: path, Err: errors.New("поддерживаются только .csv и .xlsx")}
	}
}

func firstSheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", &DataLoadError{Source: path, Err: fmt.Errorf("открытие книги: %w", err)}
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", &DataLoadError{Source: path, Err: errors.New("книга не содержит листов")}
	}
	return sheets[0], nil
}

// fromRows строит таблицу из сырых строк: первая непустая — заголовок.
// lines — номера строк rows в источнике; nil означает сплошную нумерацию.
func fromRows(name string, rows [][]string, lines []int) (*Table, error) {
	lineOf := func(i int) int {
		if lines != nil {
			return lines[i]
		}
		return i + 1
	}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, &DataLoadError{Source: name, Err: errors.New("нет строки заголовка")}
	}

	header := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}

	t := NewTable(name, header)
	for i := start + 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		t.Append(rows[i])
		t.lines = append(t.lines, lineOf(i)-lineOf(start))
	}
	return t, nil
}

func fitRow(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// --- Запись ---

// Encode сериализует таблицу по расширению name (.csv или .xlsx).
func Encode(t *Table, name string) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		data, err := EncodeXLSX(t, "Report")
		return data, ContentTypeXLSX, err
	case ".csv", "":
		data, err := EncodeCSV(t)
		return data, ContentTypeCSV, err
	default:
		return nil, "", fmt.Errorf("неподдерживаемый формат артефакта: %s", filepath.Ext(name))
	}
}

// EncodeCSV сериализует таблицу в CSV (UTF-8).
func EncodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("запись CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeXLSX сериализует таблицу в XLSX с одним листом sheet.
func EncodeXLSX(t *Table, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("переименование листа: %w", err)
	}

	if err := writeRow(f, sheet, 1, t.Header); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("запись XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, n int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("запись строки %d: %w", n, err)
	}
	return nil
}
