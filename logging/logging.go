package logging

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink receives status messages from the pipeline components.
type Sink interface {
	Log(level logrus.Level, msg string)
}

type logrusSink struct {
	logger *logrus.Logger
}

// NewLogrus wraps a logrus logger as a Sink.
func NewLogrus(logger *logrus.Logger) Sink {
	return &logrusSink{logger: logger}
}

func (s *logrusSink) Log(level logrus.Level, msg string) {
	s.logger.Log(level, msg)
}

// NewLogger builds the logger used by the command line tool. Output never
// goes to stdout, which is reserved for the JSON report.
func NewLogger(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	return logger, nil
}

func Debugf(s Sink, format string, args ...interface{}) {
	s.Log(logrus.DebugLevel, fmt.Sprintf(format, args...))
}

func Infof(s Sink, format string, args ...interface{}) {
	s.Log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func Warnf(s Sink, format string, args ...interface{}) {
	s.Log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func Errorf(s Sink, format string, args ...interface{}) {
	s.Log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// Discard drops every message.
var Discard Sink = discard{}

type discard struct{}

func (discard) Log(logrus.Level, string) {}

type tee []Sink

// Tee delivers every message to each of sinks, in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Log(level logrus.Level, msg string) {
	for _, s := range t {
		s.Log(level, msg)
	}
}

// Entry is a message captured by a Recorder.
type Entry struct {
	Level   logrus.Level
	Message string
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Log(level logrus.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

// Entries returns a copy of the recorded messages in arrival order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of recorded messages at the given level.
func (r *Recorder) Count(level logrus.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
