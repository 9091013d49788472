package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved output locations of one process
type Paths struct {
	BaseDir    string
	ReportsDir string
	LogsDir    string
	LogFile    string
}

// ResolvePaths makes report and log paths absolute against baseDir. An
// empty baseDir means the working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	p := &Paths{
		BaseDir:    baseDir,
		ReportsDir: abs(c.Report.Dir),
		LogFile:    abs(c.Logging.FilePath),
	}
	if p.LogFile != "" {
		p.LogsDir = filepath.Dir(p.LogFile)
	}
	return p, nil
}

// EnsureDirectories creates the report and log directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ReportsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
