package main

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestMain points dataDirPath at a scratch directory so tests never touch a
// real settings file.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "terrasync-test")
	if err != nil {
		panic(err)
	}
	dataDirPath = dir
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
