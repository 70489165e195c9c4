package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/truesoul/outreach/internal/models"
)

func msgWith(headers map[string]string, body string) *models.InboundMessage {
	lowered := make(map[string]string, len(headers))
	for k, v := range headers {
		lowered[k] = v
	}
	return &models.InboundMessage{
		ID:         "msg-1",
		Headers:    lowered,
		Body:       body,
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		body      string
		wantEvent string
		wantMatch bool
	}{
		{
			name:      "in-reply-to header is a reply",
			headers:   map[string]string{"in-reply-to": "<abc@mail.example.com>"},
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "references header is a reply",
			headers:   map[string]string{"references": "<a@x> <b@y>"},
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "re: subject is a reply",
			headers:   map[string]string{"subject": "RE: your offer"},
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "aw: subject is a reply",
			headers:   map[string]string{"subject": "AW: Ihr Angebot"},
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "auto-submitted other than no is a reply",
			headers:   map[string]string{"auto-submitted": "auto-replied"},
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "auto-submitted no is not a reply",
			headers:   map[string]string{"auto-submitted": "no", "subject": "hello"},
			wantMatch: false,
		},
		{
			name:      "mailer-daemon sender is a bounce",
			headers:   map[string]string{"from": "Mail Delivery Subsystem <MAILER-DAEMON@googlemail.com>", "subject": "hello"},
			wantEvent: models.EventBounced,
			wantMatch: true,
		},
		{
			name:      "postmaster sender is a bounce",
			headers:   map[string]string{"from": "postmaster@outlook.com", "subject": "hello"},
			wantEvent: models.EventBounced,
			wantMatch: true,
		},
		{
			name:      "undeliverable subject is a bounce",
			headers:   map[string]string{"from": "someone@example.com", "subject": "Undeliverable: your offer"},
			wantEvent: models.EventBounced,
			wantMatch: true,
		},
		{
			name:      "bounce phrase in body is a bounce",
			headers:   map[string]string{"from": "someone@example.com", "subject": "hello"},
			body:      "550 5.2.1 Mailbox unavailable for this recipient",
			wantEvent: models.EventBounced,
			wantMatch: true,
		},
		{
			name: "reply beats bounce when both match",
			headers: map[string]string{
				"from":    "mailer-daemon@googlemail.com",
				"subject": "Re: Delivery Status Notification",
			},
			body:      "address not found",
			wantEvent: models.EventReplied,
			wantMatch: true,
		},
		{
			name:      "plain message matches nothing",
			headers:   map[string]string{"from": "lead@example.com", "subject": "Question about the property"},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, matched := Classify(msgWith(tt.headers, tt.body))
			assert.Equal(t, tt.wantMatch, matched)
			if tt.wantMatch {
				assert.Equal(t, tt.wantEvent, event)
			}
		})
	}
}

func TestReferencedMessageIDs(t *testing.T) {
	msg := msgWith(map[string]string{
		"in-reply-to": "<job-123@mail.example.com>",
		"references":  "<root@x.com><job-123@mail.example.com> <mid@y.com>",
	}, "")

	ids := referencedMessageIDs(msg)
	assert.Equal(t, []string{"job-123@mail.example.com", "root@x.com", "mid@y.com"}, ids)
}

func TestReferencedMessageIDs_Empty(t *testing.T) {
	assert.Empty(t, referencedMessageIDs(msgWith(map[string]string{"subject": "re: hi"}, "")))
}

func TestBounceOriginalMessageID(t *testing.T) {
	t.Run("from body pattern", func(t *testing.T) {
		msg := msgWith(nil, "The following message could not be delivered.\noriginal-message-id: <job-9@mail.example.com>\n")
		assert.Equal(t, "job-9@mail.example.com", bounceOriginalMessageID(msg))
	})

	t.Run("falls back to in-reply-to", func(t *testing.T) {
		msg := msgWith(map[string]string{"in-reply-to": "<job-7@mail.example.com>"}, "no ids in here")
		assert.Equal(t, "job-7@mail.example.com", bounceOriginalMessageID(msg))
	})

	t.Run("empty when unattributable", func(t *testing.T) {
		msg := msgWith(map[string]string{"from": "mailer-daemon@x.com"}, "nothing useful")
		assert.Equal(t, "", bounceOriginalMessageID(msg))
	})
}

func TestBracketed(t *testing.T) {
	assert.Equal(t, "<a@b>", bracketed("a@b"))
	assert.Equal(t, "<a@b>", bracketed("<a@b>"))
	assert.Equal(t, "<a@b>", bracketed(" <a@b> "))
}
