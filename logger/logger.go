package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"slotwatch/config"
)

const MaxLogSize = 50 * 1024 * 1024 // 50 MB

var (
	GlobalLogger, PipelineLogger, ApiLogger *slog.Logger
	consoleEnabled                          = true
	level                                   = new(slog.LevelVar)

	globalRW, pipelineRW, apiRW *rotatingWriter
)

// Thread-safe writer that moves the current file aside when it exceeds max size.
type rotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	dir     string
	prefix  string // e.g. "slotwatch_20250925101122_run_pipeline"
	ext     string // ".log"
	size    int64
	maxSize int64
	rotated int
}

func newRotatingWriter(dir, prefix string, maxSize int64) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rw := &rotatingWriter{
		dir:     dir,
		prefix:  prefix,
		ext:     ".log",
		maxSize: maxSize,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (w *rotatingWriter) currentName() string {
	return filepath.Join(w.dir, w.prefix+w.ext)
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.currentName(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
	}
	w.rotated++
	aside := filepath.Join(w.dir, fmt.Sprintf("%s.%d%s", w.prefix, w.rotated, w.ext))
	if err := os.Rename(w.currentName(), aside); err != nil && !os.IsNotExist(err) {
		return err
	}
	return w.open()
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func SetConsoleEnabled(enabled bool) {
	consoleEnabled = enabled
	resetLoggers()
}

// SetLevel accepts debug, info, warn or error; anything else keeps the current level
func SetLevel(name string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		GlobalLogger.Warn("Unknown log level, keeping current", "level", name, "current", level.Level().String())
		return
	}
	level.Set(l)
}

// InitLogs opens the per-command log files. Call once from a command's Run.
func InitLogs(cmdName string) {
	ts := time.Now().Format("20060102150405")

	var err error
	pipelineRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("slotwatch_%s_%s_pipeline", ts, cmdName), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}
	apiRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("slotwatch_%s_%s_api", ts, cmdName), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}

	PipelineLogger = slog.New(newHandler(pipelineRW))
	ApiLogger = slog.New(newHandler(apiRW))
	resetLoggers()
}

func init() {
	ts := time.Now().Format("20060102150405")

	var err error
	globalRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("slotwatch_%s_global", ts), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}
	GlobalLogger = slog.New(newHandler(globalRW))
	// Until InitLogs runs, everything goes to the global file.
	PipelineLogger = GlobalLogger
	ApiLogger = GlobalLogger
}

func CloseAll() {
	for _, rw := range []*rotatingWriter{globalRW, pipelineRW, apiRW} {
		if rw != nil {
			_ = rw.Close()
		}
	}
}

func newHandler(fileWriter io.Writer) slog.Handler {
	w := fileWriter
	if consoleEnabled {
		w = io.MultiWriter(os.Stdout, fileWriter)
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
}

func resetLoggers() {
	if globalRW != nil {
		GlobalLogger = slog.New(newHandler(globalRW))
	}
	if pipelineRW != nil {
		PipelineLogger = slog.New(newHandler(pipelineRW))
	} else {
		PipelineLogger = GlobalLogger
	}
	if apiRW != nil {
		ApiLogger = slog.New(newHandler(apiRW))
	} else {
		ApiLogger = GlobalLogger
	}
}
