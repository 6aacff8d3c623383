package contracts

// LogLevel represents the severity threshold for logging.
type LogLevel int

const (
	// DebugLevel indicates messages useful for troubleshooting.
	DebugLevel LogLevel = iota - 1
	// InfoLevel indicates informational messages about normal operation.
	InfoLevel
	// WarnLevel indicates potentially harmful situations worth monitoring.
	WarnLevel
	// ErrorLevel indicates serious issues that need attention.
	ErrorLevel
)

// Field is one structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

func String(key, val string) Field      { return Field{key, val} }
func Int(key string, val int) Field     { return Field{key, val} }
func Int64(key string, val int64) Field { return Field{key, val} }
func Uint64(key string, val uint64) Field {
	return Field{key, val}
}
func Bool(key string, val bool) Field { return Field{key, val} }
func Err(err error) Field             { return Field{"error", err} }

// Logger provides leveled, structured logging for the transport core.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	SetLevel(level LogLevel)
}
