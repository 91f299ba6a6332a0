package api

import (
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogBuffer is a thread-safe ring buffer that captures zerolog output
// for the /api/logs endpoint. It implements io.Writer so it can sit in
// a zerolog MultiLevelWriter.
type LogBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewLogBuffer creates a buffer holding the most recent size lines.
func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write implements io.Writer for capturing log output.
func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	raw := string(p)
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     parseLevel(raw),
		Message:   parseMessage(raw),
		Raw:       raw,
	}

	lb.mu.Lock()
	lb.entries[lb.head] = entry
	lb.head = (lb.head + 1) % lb.size
	if lb.count < lb.size {
		lb.count++
	}
	lb.mu.Unlock()

	return len(p), nil
}

// Entries returns all captured entries in chronological order.
func (lb *LogBuffer) Entries() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, lb.count)
	if lb.count == 0 {
		return result
	}
	start := 0
	if lb.count == lb.size {
		start = lb.head
	}
	for i := 0; i < lb.count; i++ {
		result[i] = lb.entries[(start+i)%lb.size]
	}
	return result
}

// Recent returns the most recent n entries.
func (lb *LogBuffer) Recent(n int) []LogEntry {
	entries := lb.Entries()
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// parseLevel extracts the level field from a zerolog JSON line.
func parseLevel(raw string) string {
	for _, level := range []string{"debug", "info", "warn", "error", "fatal"} {
		if strings.Contains(raw, `"level":"`+level+`"`) {
			return level
		}
	}
	return "info"
}

// parseMessage extracts the message field from a zerolog JSON line.
func parseMessage(raw string) string {
	start := strings.Index(raw, `"message":"`)
	if start == -1 {
		return strings.TrimSpace(raw)
	}
	start += len(`"message":"`)
	end := start
	for end < len(raw) && raw[end] != '"' {
		if raw[end] == '\\' && end+1 < len(raw) {
			end += 2
			continue
		}
		end++
	}
	return raw[start:end]
}
