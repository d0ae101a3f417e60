package config

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/logfields"
)

// envFiles are tried in order in the configuration directory.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local from dir. Variables already set in
// the process environment are never overwritten. Missing files are ignored.
func LoadEnvFiles(fsys afero.Fs, dir string) error {
	for _, name := range envFiles {
		p := filepath.Join(dir, name)
		ok, err := afero.Exists(fsys, p)
		if err != nil || !ok {
			continue
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		vars, err := godotenv.Parse(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		applyEnv(vars)
		slog.Debug("Loaded environment file", logfields.Path(p), slog.Int("vars", len(vars)))
	}
	return nil
}
