package report

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"
)

type FSSink struct {
	fs  afero.Fs
	dir string
}

func NewFSSink(fs afero.Fs, dir string) *FSSink {
	return &FSSink{fs: fs, dir: dir}
}

func (s *FSSink) Write(_ context.Context, name string, body []byte) error {
	p := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := s.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, p, body, 0644)
}
