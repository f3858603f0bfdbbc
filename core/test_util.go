package core

import "sync"

// LoggerMock records messages instead of printing them.
type LoggerMock struct {
	mu       sync.Mutex
	Messages []string
	Args     []interface{} // args of every message, in order
}

var _ Logger = (*LoggerMock)(nil)

func (l *LoggerMock) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
	l.Args = append(l.Args, args...)
}

func (l *LoggerMock) Logged() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages...)
}

func (l *LoggerMock) LoggedArgs() []interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]interface{}(nil), l.Args...)
}

func (l *LoggerMock) Debug(msg string, args ...interface{}) { l.record("DEBUG", msg, args) }
func (l *LoggerMock) Info(msg string, args ...interface{})  { l.record("INFO", msg, args) }
func (l *LoggerMock) Warn(msg string, args ...interface{})  { l.record("WARN", msg, args) }
func (l *LoggerMock) Error(msg string, args ...interface{}) { l.record("ERROR", msg, args) }
func (l *LoggerMock) Fatal(msg string, args ...interface{}) { l.record("FATAL", msg, args) }

// MailerMock records the messages instead of sending them.
type MailerMock struct {
	mu       sync.Mutex
	Messages []*EmailMessage
}

var _ EmailService = (*MailerMock)(nil)

func (m *MailerMock) SendMessages(messages ...*EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, messages...)
}

func (m *MailerMock) Sent() []*EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*EmailMessage(nil), m.Messages...)
}
