package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

// Define colored labels using fatih/color
var (
	infoColor  = color.New(color.FgGreen).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
	traceColor = color.New(color.FgYellow).SprintFunc() // Yellow is closest to brown
	errorColor = color.New(color.FgRed).SprintFunc()
)

// SimpleLogSink implements the logr.LogSink interface for human-readable output with colors.
type SimpleLogSink struct {
	writer       io.Writer
	minVerbosity int
	name         string
	keyValues    []interface{}
	mutex        *sync.Mutex
	callDepth    int
	useColor     bool
}

// NewSimpleLogSink creates a new SimpleLogSink.
// If writer is nil, it defaults to os.Stdout.
// minVerbosity sets the minimum verbosity level to log.
func NewSimpleLogSink(writer io.Writer, minVerbosity int, useColor bool) *SimpleLogSink {
	if writer == nil {
		writer = os.Stdout
	}
	return &SimpleLogSink{
		writer:       writer,
		minVerbosity: minVerbosity,
		keyValues:    []interface{}{},
		mutex:        &sync.Mutex{},
		useColor:     useColor,
	}
}

// Init initializes the logger with runtime information.
func (s *SimpleLogSink) Init(info logr.RuntimeInfo) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.callDepth = info.CallDepth
}

// Enabled determines if the logger is enabled for the given verbosity level.
func (s *SimpleLogSink) Enabled(level int) bool {
	return level <= s.minVerbosity
}

// Info logs a non-error message with key-value pairs.
func (s *SimpleLogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	if !s.Enabled(level) {
		return
	}
	s.log(false, level, msg, keysAndValues...)
}

// Error logs an error message with key-value pairs.
func (s *SimpleLogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	allKeysAndValues := append(append([]interface{}{}, keysAndValues...), "error", err)
	s.log(true, 0, msg, allKeysAndValues...)
}

// clone shares the writer and its mutex so derived sinks never interleave lines.
func (s *SimpleLogSink) clone() *SimpleLogSink {
	return &SimpleLogSink{
		writer:       s.writer,
		minVerbosity: s.minVerbosity,
		name:         s.name,
		keyValues:    append([]interface{}{}, s.keyValues...),
		mutex:        s.mutex,
		callDepth:    s.callDepth,
		useColor:     s.useColor,
	}
}

// WithValues adds key-value pairs to the logger.
func (s *SimpleLogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	c := s.clone()
	c.keyValues = append(c.keyValues, keysAndValues...)
	return c
}

// WithName adds a name to the logger.
func (s *SimpleLogSink) WithName(name string) logr.LogSink {
	c := s.clone()
	if s.name != "" {
		c.name = fmt.Sprintf("%s.%s", s.name, name)
	} else {
		c.name = name
	}
	return c
}

func (s *SimpleLogSink) label(isError bool, level int) string {
	paint := func(f func(a ...interface{}) string, text string) string {
		if !s.useColor {
			return text
		}
		return f(text)
	}
	if isError {
		return paint(errorColor, "[ERROR]")
	}
	switch level {
	case LEVEL_INFO:
		return paint(infoColor, "[INFO]")
	case LEVEL_DEBUG:
		return paint(debugColor, "[DEBUG]")
	case LEVEL_TRACE:
		return paint(traceColor, "[TRACE]")
	default:
		return fmt.Sprintf("[LEVEL %d]", level)
	}
}

// log handles the formatting and writing of log messages.
func (s *SimpleLogSink) log(isError bool, level int, msg string, keysAndValues ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var b strings.Builder
	b.WriteString(s.label(isError, level))
	b.WriteByte(' ')
	if s.name != "" {
		fmt.Fprintf(&b, "[%s] ", s.name)
	}
	b.WriteString(msg)
	b.WriteByte('\n')

	// Key-value pairs indented by two spaces (no color), logger values first.
	all := append(append([]interface{}{}, s.keyValues...), keysAndValues...)
	for i := 0; i < len(all)-1; i += 2 {
		key, ok := all[i].(string)
		if !ok {
			key = fmt.Sprintf("key%d", i/2)
		}
		fmt.Fprintf(&b, "  %s: %v\n", key, all[i+1])
	}

	_, _ = io.WriteString(s.writer, b.String())
}

// NewSimpleLogger creates a new logr.Logger using SimpleLogSink.
// If writer is nil, it defaults to os.Stdout.
// minVerbosity sets the minimum verbosity level to log.
func NewSimpleLogger(writer io.Writer, minVerbosity int, useColor bool) logr.Logger {
	sink := NewSimpleLogSink(writer, minVerbosity, useColor)
	return logr.New(sink)
}
