// Package logging implements the multi-sink structured log dispatcher.
// Four named sinks (access, error, db, app) each append JSON lines to an
// independent writer; a write failure on one sink never blocks the others
// and never surfaces to the caller.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"loadlab/internal/config"
)

const (
	SinkAccess = "access"
	SinkError  = "error"
	SinkDB     = "db"
	SinkApp    = "app"
)

type Level int8

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// ParseLevel maps a config string to a Level; unknown values fall back
// to info.
func ParseLevel(s string) Level {
	if s == "error" {
		return LevelError
	}
	return LevelInfo
}

type Entry struct {
	Time    string         `json:"timestamp"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

type sink struct {
	mu sync.Mutex
	w  io.Writer
}

type Dispatcher struct {
	mu        sync.RWMutex
	sinks     map[string]*sink
	console   *slog.Logger
	threshold Level
	onDropped func()
}

// NewDispatcher builds a dispatcher with no sinks registered. Entries at
// or above threshold are mirrored to console. onDropped is invoked once
// per failed sink write; pass nil to ignore drops.
func NewDispatcher(console *slog.Logger, threshold Level, onDropped func()) *Dispatcher {
	if onDropped == nil {
		onDropped = func() {}
	}
	return &Dispatcher{
		sinks:     make(map[string]*sink),
		console:   console,
		threshold: threshold,
		onDropped: onDropped,
	}
}

func (d *Dispatcher) Register(name string, w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[name] = &sink{w: w}
}

// Emit appends one entry to the named sink. Emission is best effort:
// unknown sinks and write failures count as drops and are reported on the
// console, nothing more.
func (d *Dispatcher) Emit(name string, level Level, msg string, metrics map[string]any) {
	e := Entry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
		Metrics: metrics,
	}

	d.mu.RLock()
	s := d.sinks[name]
	d.mu.RUnlock()

	if s == nil {
		d.onDropped()
		d.console.Warn("log sink not registered", slog.String("sink", name))
	} else if err := d.write(s, e); err != nil {
		d.onDropped()
		d.console.Warn("log sink write failed",
			slog.String("sink", name),
			slog.String("error", err.Error()))
	}

	if level >= d.threshold {
		d.mirror(name, level, msg, metrics)
	}
}

func (d *Dispatcher) write(s *sink, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

func (d *Dispatcher) mirror(name string, level Level, msg string, metrics map[string]any) {
	attrs := make([]any, 0, len(metrics)+1)
	attrs = append(attrs, slog.String("sink", name))
	for k, v := range metrics {
		attrs = append(attrs, slog.Any(k, v))
	}
	if level == LevelError {
		d.console.Error(msg, attrs...)
	} else {
		d.console.Info(msg, attrs...)
	}
}

// NewFileDispatcher registers the four standard sinks backed by rotating
// files under cfg.Dir.
func NewFileDispatcher(cfg *config.LoggingConfig, console *slog.Logger, onDropped func()) *Dispatcher {
	d := NewDispatcher(console, ParseLevel(cfg.ConsoleLevel), onDropped)
	for _, name := range []string{SinkAccess, SinkError, SinkDB, SinkApp} {
		d.Register(name, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name+".log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	return d
}
