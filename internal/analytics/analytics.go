package analytics

import "log"

// Sink 接收埋点事件。调用方只管发送，失败由实现自行吞掉，
// 绝不影响业务操作。
type Sink interface {
	Track(event string, props map[string]any)
}

// LogSink writes events to the process log, the default for development.
type LogSink struct{}

// Track logs the event.
func (LogSink) Track(event string, props map[string]any) {
	log.Printf("[analytics] %s %v", event, props)
}

// NopSink discards every event.
type NopSink struct{}

// Track does nothing.
func (NopSink) Track(string, map[string]any) {}

// MemorySink records events for assertions in tests. Not safe for concurrent
// use from multiple goroutines.
type MemorySink struct {
	Events []string
}

// Track appends the event name.
func (s *MemorySink) Track(event string, _ map[string]any) {
	s.Events = append(s.Events, event)
}
