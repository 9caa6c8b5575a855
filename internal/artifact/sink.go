// Пакет artifact — приёмники артефактов запуска (таблицы preflight,
// результатов, отчёты): локальный каталог или S3-совместимое хранилище.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink — приёмник артефактов.
type Sink interface {
	// Put записывает артефакт name и возвращает его расположение.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DirSink записывает артефакты в локальный каталог.
type DirSink struct {
	dir string
}

// NewDirSink создаёт приёмник для каталога dir (создаётся при первой записи).
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Put записывает файл dir/name. Абсолютный name записывается как есть.
func (s *DirSink) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(s.dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("создание каталога артефактов: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: отчёты читаются оператором
		return "", fmt.Errorf("запись артефакта %s: %w", path, err)
	}
	return path, nil
}
