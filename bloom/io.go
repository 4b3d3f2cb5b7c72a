package bloom

import (
	"os"

	"github.com/pkg/errors"
)

// ExportToFile writes Export() to path, matching the teacher's pattern in
// z/file.go of wrapping os errors with call-site context via pkg/errors.
func (f *Filter) ExportToFile(path string) error {
	if err := os.WriteFile(path, f.Export(), 0o644); err != nil {
		return errors.Wrapf(err, "bloom: writing filter to %s", path)
	}
	return nil
}

// ExportCHeaderToFile writes ExportCHeader(varName) to path.
func (f *Filter) ExportCHeaderToFile(path, varName string) error {
	if err := os.WriteFile(path, []byte(f.ExportCHeader(varName)), 0o644); err != nil {
		return errors.Wrapf(err, "bloom: writing C header to %s", path)
	}
	return nil
}

// LoadPath reads path and loads a Filter from its contents. Behavior is
// identical to Load(readAll(path)) (spec §6.8): LoadBytes(ReadAll(path))
// === LoadPath(path).
func LoadPath(path string, opts ...Option) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "bloom: reading filter from %s", path)
	}
	return Load(data, opts...)
}
