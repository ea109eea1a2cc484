package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hd-camera/internal/application"
)

// ErrInvalidName недопустимое имя файла
var ErrInvalidName = errors.New("invalid capture name")

// FileStore сохраняет снимки в директорию, как браузер сохраняет загрузки
type FileStore struct {
	mutex  sync.Mutex
	dir    string
	logger application.Logger
}

// NewFileStore создает хранилище и директорию, если она не существует
func NewFileStore(dir string, logger application.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir возвращает директорию снимков
func (s *FileStore) Dir() string {
	return s.dir
}

// Save записывает снимок. Существующий файл не перезаписывается:
// к имени добавляется суффикс -1, -2 и т.д.
func (s *FileStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(filename); err != nil {
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	name := filename
	for i := 1; ; i++ {
		file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create capture file: %w", err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			return "", fmt.Errorf("write capture file: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("close capture file: %w", err)
		}

		s.logger.Debug("Запись в файл: %s", filepath.Join(s.dir, name))
		return name, nil
	}
}

// Open открывает сохраненный снимок для скачивания
func (s *FileStore) Open(filename string) (io.ReadSeekCloser, error) {
	if err := validName(filename); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, err
	}
	return file, nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
