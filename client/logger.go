package client

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel. Unknown strings map to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value interface{}
}

// Helper functions for creating fields
func String(key, val string) Field  { return Field{Key: key, Value: val} }
func Int(key string, val int) Field { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}
func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}
func Error(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// jsonLogger implements Logger emitting one JSON object per line.
type jsonLogger struct {
	logger     *log.Logger
	minLevel   LogLevel
	baseFields []Field
}

// NewLogger creates a logger with the given minimum level writing to output.
// A nil output defaults to stdout.
func NewLogger(level string, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}
	return &jsonLogger{
		logger:   log.New(output, "", 0),
		minLevel: ParseLogLevel(level),
	}
}

func (l *jsonLogger) Debug(msg string, fields ...Field) {
	if l.minLevel <= DEBUG {
		l.log(DEBUG, msg, fields...)
	}
}

func (l *jsonLogger) Info(msg string, fields ...Field) {
	if l.minLevel <= INFO {
		l.log(INFO, msg, fields...)
	}
}

func (l *jsonLogger) Warn(msg string, fields ...Field) {
	if l.minLevel <= WARN {
		l.log(WARN, msg, fields...)
	}
}

func (l *jsonLogger) Error(msg string, fields ...Field) {
	if l.minLevel <= ERROR {
		l.log(ERROR, msg, fields...)
	}
}

func (l *jsonLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.baseFields)+len(fields))
	combined = append(combined, l.baseFields...)
	combined = append(combined, fields...)
	return &jsonLogger{logger: l.logger, minLevel: l.minLevel, baseFields: combined}
}

func (l *jsonLogger) log(level LogLevel, msg string, fields ...Field) {
	entry := make(map[string]interface{}, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	for _, f := range l.baseFields {
		entry[f.Key] = redact(f)
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}

	b, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":"ERROR","message":"failed to marshal log","error":"%s"}`, err.Error())
		return
	}
	l.logger.Println(string(b))
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"secret":        true,
	"authorization": true,
	"keyPassword":   true,
}

// redact masks values for sensitive keys.
func redact(f Field) interface{} {
	if sensitiveKeys[f.Key] || sensitiveKeys[strings.ToLower(f.Key)] {
		return "[REDACTED]"
	}
	return f.Value
}

// noopLogger implements Logger but does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...Field) {}
func (noopLogger) Info(msg string, fields ...Field)  {}
func (noopLogger) Warn(msg string, fields ...Field)  {}
func (noopLogger) Error(msg string, fields ...Field) {}
func (noopLogger) WithFields(fields ...Field) Logger { return noopLogger{} }

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() Logger {
	return noopLogger{}
}
