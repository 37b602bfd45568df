package platform

import (
	"os"
	"path/filepath"
)

// FileStore is the on-device KVStore, one file per key under a data
// directory. Saves go through a temp file and rename so a partial write can
// never be observed as a valid value.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) LoadBytes(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(f.dir, key))
}

func (f *FileStore) SaveBytes(key string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(f.dir, key)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	file.Sync()
	file.Close()

	return os.Rename(tmp, path)
}
