// Package shutdown handles controlled aborts: a fatal condition writes an
// exit marker next to the data so operators can see why the process died,
// then terminates.
package shutdown

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"threadcast/pkg/logger"
	"threadcast/pkg/state"
)

type exitMarker struct {
	Time   string `json:"time"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
	Cmd    string `json:"cmd"`
}

// Abort logs the fatal condition, drops an exit marker under the data
// path's crash directory and exits non-zero. The marker write is
// best-effort; the abort proceeds regardless.
func Abort(reason string, err error, dataPath string) {
	logger.Error("aborting", "reason", reason, "error", err)

	m := exitMarker{
		Time:   time.Now().UTC().Format(time.RFC3339),
		Reason: reason,
		Cmd:    filepath.Base(os.Args[0]),
	}
	if err != nil {
		m.Error = err.Error()
	}
	if dataPath != "" {
		writeMarker(state.CrashPath(dataPath), m)
	}
	// give the log sink a moment to flush
	time.Sleep(200 * time.Millisecond)
	os.Exit(1)
}

func writeMarker(dir string, m exitMarker) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Warn("exit_marker_dir_failed", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	name := filepath.Join(dir, "exit-"+time.Now().UTC().Format("20060102T150405Z")+".json")
	if err := os.WriteFile(name, data, 0o600); err != nil {
		logger.Warn("exit_marker_write_failed", "path", name, "error", err)
	}
}
