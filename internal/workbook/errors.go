package workbook

import "fmt"

// DataLoadError — входные данные не читаются или не соответствуют формату.
// Фатальна для запуска: обработка не начинается.
type DataLoadError struct {
	// Source — файл или лист
	Source string
	// Row — строка данных (1-based), 0 — ошибка уровня файла
	Row int
	// Column — колонка, если ошибка относится к ячейке
	Column string
	Err    error
}

func (e *DataLoadError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("%s: строка %d, колонка %q: %v", e.Source, e.Row, e.Column, e.Err)
	case e.Column != "":
		return fmt.Sprintf("%s: колонка %q: %v", e.Source, e.Column, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
}

func (e *DataLoadError) Unwrap() error { return e.Err }
