package obdlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenLogFile creates (or appends to) today's date-stamped log file under
// dir/YYYY_MM_DD/name.log. Callers pass the returned file to NewWithOutput.
func OpenLogFile(dir, name string) (*os.File, error) {
	dateDir := filepath.Join(dir, time.Now().Format("2006_01_02"))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dateDir, name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
