package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// dataDirPath holds settings.json. On macOS it lives in the user's
// Application Support directory; elsewhere it sits next to the executable so
// the client works regardless of the current working directory.
var dataDirPath = func() string {
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			dir := filepath.Join(home, "Library", "Application Support", "terrasync")
			_ = os.MkdirAll(dir, 0o755)
			return dir
		}
	}
	if exe, err := os.Executable(); err == nil {
		if dir, err := filepath.Abs(filepath.Dir(exe)); err == nil {
			return filepath.Join(dir, "data")
		}
	}
	return "data"
}()
