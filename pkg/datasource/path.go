package datasource

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// ResolvePath locates a datasource file. Absolute paths are used as is;
// relative paths are tried against base (the style's directory) and then
// against searchDir.
func ResolvePath(file, base, searchDir string) (string, error) {
	if filepath.IsAbs(file) {
		if !exists(file) {
			return "", errors.New(errors.ErrCodeFileNotFound, "datasource file %s not found", file)
		}
		return file, nil
	}

	tried := make([]string, 0, 2)
	for _, dir := range []string{base, searchDir} {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, file)
		if exists(p) {
			return p, nil
		}
		tried = append(tried, p)
	}
	if len(tried) == 0 && exists(file) {
		return file, nil
	}
	return "", errors.New(errors.ErrCodeFileNotFound, "datasource file %s not found (tried %v)", file, tried)
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
