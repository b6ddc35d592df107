package utils

import "sync"

// LogEntry is one record retained by a CaptureLogger.
type LogEntry struct {
	Level   LogLevel
	Msg     string
	KeyVals []any
}

// CaptureLogger retains every record in memory so tests can assert on what
// was logged. It ignores SetLevel; tests want everything. Safe for
// concurrent use.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *CaptureLogger) record(level LogLevel, msg string, keysAndValues []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, LogEntry{Level: level, Msg: msg, KeyVals: keysAndValues})
}

func (c *CaptureLogger) Debug(msg string, keysAndValues ...any) {
	c.record(LogLevelDebug, msg, keysAndValues)
}

func (c *CaptureLogger) Info(msg string, keysAndValues ...any) {
	c.record(LogLevelInfo, msg, keysAndValues)
}

func (c *CaptureLogger) Warn(msg string, keysAndValues ...any) {
	c.record(LogLevelWarn, msg, keysAndValues)
}

func (c *CaptureLogger) Error(msg string, keysAndValues ...any) {
	c.record(LogLevelError, msg, keysAndValues)
}

func (c *CaptureLogger) SetLevel(LogLevel) {}

// Entries returns a copy of everything recorded so far.
func (c *CaptureLogger) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Messages returns the recorded messages at the given level, in order.
func (c *CaptureLogger) Messages(level LogLevel) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}
