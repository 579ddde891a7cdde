package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = logrus.New()

	errorLogPath string
	debugLogPath string
	// debugPacketDumpLen limits how many bytes of a frame are logged.
	// A value of 0 dumps the entire frame.
	debugPacketDumpLen = 256
)

func setupLogging(debug bool) {
	logDir := gs.LogDir
	if logDir == "" {
		logDir = "logs"
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05"})
	logger.SetOutput(os.Stdout)
	if !isWASM {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			logger.Warnf("could not create log directory: %v", err)
		} else {
			errorLogPath = filepath.Join(logDir, "terrasync.log")
			logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   errorLogPath,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			}))
		}
	}
	setDebugLogging(debug)
}

func setDebugLogging(enabled bool) {
	if !enabled {
		logger.SetLevel(logrus.InfoLevel)
		debugLogPath = ""
		return
	}
	logger.SetLevel(logrus.DebugLevel)
	if isWASM || errorLogPath == "" {
		return
	}
	ts := time.Now().Format("20060102-150405")
	debugLogPath = filepath.Join(filepath.Dir(errorLogPath), fmt.Sprintf("debug-%s.log", ts))
	logger.AddHook(&fileHook{
		w:      &lumberjack.Logger{Filename: debugLogPath, MaxSize: 50, MaxBackups: 2},
		levels: []logrus.Level{logrus.DebugLevel, logrus.TraceLevel},
		format: &logrus.JSONFormatter{},
	})
}

// fileHook copies entries of the given levels to a separate sink.
type fileHook struct {
	w      io.Writer
	levels []logrus.Level
	format logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return h.levels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	b, err := h.format.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

func logError(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

func logWarn(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

func logInfo(format string, v ...interface{}) {
	logger.Infof(format, v...)
}

func logDebug(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

func logDebugPacket(prefix string, data []byte) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	n := len(data)
	dump := data
	if debugPacketDumpLen > 0 && n > debugPacketDumpLen {
		dump = data[:debugPacketDumpLen]
	}
	logger.WithField("len", n).Debugf("%s %s", prefix, dump)
}

func logPanic(r interface{}) {
	logger.WithField("stack", string(debug.Stack())).Errorf("panic: %v", r)
}
