package persist

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

//FileStore reads and writes named documents inside a single directory
type FileStore struct {
	dir string
}

//NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, oops.Code("PERSIST_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return &FileStore{dir: dir}, nil
}

//Path returns the location of a named document
func (f *FileStore) Path(name string) string {
	return filepath.Join(f.dir, name)
}

//Read returns the document contents. A missing document is reported with an error satisfying
//errors.Is(err, fs.ErrNotExist).
func (f *FileStore) Read(name string) ([]byte, error) {
	return os.ReadFile(f.Path(name))
}

//Write replaces the document atomically so a crash never leaves a half-written file behind
func (f *FileStore) Write(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, "."+name+".*.tmp")
	if err != nil {
		return oops.Code("PERSIST_WRITE_FAILED").With("document", name).Wrap(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return oops.Code("PERSIST_WRITE_FAILED").With("document", name).Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return oops.Code("PERSIST_WRITE_FAILED").With("document", name).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return oops.Code("PERSIST_WRITE_FAILED").With("document", name).Wrap(err)
	}
	if err := os.Rename(tmpName, f.Path(name)); err != nil {
		cleanup()
		return oops.Code("PERSIST_WRITE_FAILED").With("document", name).Wrap(err)
	}
	return nil
}
