// Package dump manages pg_dump exports of the scraper database.
package dump

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const filePattern = "autoria_dump_*.sql"

// Config controls dump output and retention.
type Config struct {
	DSN  string
	Dir  string
	Keep int
}

// Manager creates timestamped SQL dumps and prunes old ones.
type Manager struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Manager.
func New(cfg Config, logger *zap.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Create writes a full pg_dump export into the dump directory and
// returns its path.
func (m *Manager) Create(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}

	name := fmt.Sprintf("autoria_dump_%s.sql", time.Now().Format("20060102_150405"))
	path := filepath.Join(m.cfg.Dir, name)

	cmd := exec.CommandContext(ctx, "pg_dump",
		"--dbname", m.cfg.DSN,
		"--file", path,
		"--no-owner",
		"--no-acl",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if info, err := os.Stat(path); err == nil {
		m.logger.Info("dump created",
			zap.String("path", path),
			zap.Int64("bytes", info.Size()),
		)
	}
	return path, nil
}

// Cleanup removes old dumps, keeping the newest Keep files. It returns
// the number of files removed. A missing dump directory is not an
// error; there is simply nothing to clean.
func (m *Manager) Cleanup() (int, error) {
	paths, err := filepath.Glob(filepath.Join(m.cfg.Dir, filePattern))
	if err != nil {
		return 0, fmt.Errorf("list dumps: %w", err)
	}
	if len(paths) <= m.cfg.Keep {
		return 0, nil
	}

	type dumpFile struct {
		path    string
		modTime time.Time
	}
	files := make([]dumpFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, dumpFile{path: p, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if len(files) <= m.cfg.Keep {
		return 0, nil
	}

	removed := 0
	for _, f := range files[m.cfg.Keep:] {
		if err := os.Remove(f.path); err != nil {
			m.logger.Error("remove old dump failed",
				zap.String("path", f.path),
				zap.Error(err),
			)
			continue
		}
		m.logger.Info("old dump removed", zap.String("path", f.path))
		removed++
	}
	return removed, nil
}
