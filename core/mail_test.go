package core

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig()
	data := struct {
		ID                string
		Candidate         string
		VerifiedPerson    string
		TerminationReason string
		WarningCount      int
		StartedAt         time.Time
	}{"4b8c", "Alice Doe", "alice", "warnings", 3, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	tests := []struct {
		name     string
		msg      EmailMessage
		wantText []string
		wantHTML bool
	}{
		{
			name:     "template",
			msg:      EmailMessage{TemplateName: "session_terminated", TemplateData: data},
			wantText: []string{"Exam session 4b8c has been terminated.", "Reason: warnings", "Warnings: 3/3", "2026-03-01 09:00:00 UTC", "EvalEdge - http://localhost:5173"},
			wantHTML: true,
		},
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "hello"},
			wantText: []string{"hello"},
		},
		{name: "unknown template", msg: EmailMessage{TemplateName: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.msg.Render(conf))
			for _, want := range tt.wantText {
				assert.Contains(t, tt.msg.TextContent, want)
			}
			assert.Equal(t, tt.wantHTML, strings.Contains(tt.msg.HTMLContent, "<td>Alice Doe</td>"))
			assert.Equal(t, len(tt.wantText) > 0, tt.msg.HasContent())
		})
	}
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg EmailMessage
	require.NoError(t, msg.Attach(strings.NewReader("kind,warning_count\nvisibility,1\n"), "violations.csv", "text/csv"))
	require.NoError(t, msg.Attach(strings.NewReader("plain text"), "notes.txt"))
	require.True(t, msg.HasAttachments())

	at := msg.Attachments[0]
	assert.Equal(t, "violations.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	raw, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, "kind,warning_count\nvisibility,1\n", string(raw))

	assert.Equal(t, "text/plain; charset=utf-8", msg.Attachments[1].ContentType)
}

func TestParseEmailTemplates(t *testing.T) {
	logger := new(LoggerMock)
	ParseEmailTemplates(logger)
	assert.Empty(t, logger.Logged())
	assert.Contains(t, templates, "session_terminated")
}
