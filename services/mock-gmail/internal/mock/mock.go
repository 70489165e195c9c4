package mock

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrHistoryExpired is returned when a start cursor points before the
// oldest retained history record, mirroring the real API's 404.
var ErrHistoryExpired = errors.New("history id no longer available")

// Wire types matching the Gmail REST v1 JSON the monitor consumes.

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Body struct {
	Data string `json:"data"`
}

type Part struct {
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers"`
	Body     Body     `json:"body"`
	Parts    []Part   `json:"parts,omitempty"`
}

type Message struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate string `json:"internalDate"`
	Payload      Part   `json:"payload"`
}

type MessageRef struct {
	ID string `json:"id"`
}

type HistoryRecord struct {
	ID            string `json:"id"`
	MessagesAdded []struct {
		Message MessageRef `json:"message"`
	} `json:"messagesAdded"`
}

type HistoryPage struct {
	Records       []HistoryRecord
	HistoryID     string
	NextPageToken string
}

type MessagePage struct {
	Refs          []MessageRef
	NextPageToken string
}

// In-memory mailbox state, shared by every impersonated user.
var (
	mu sync.RWMutex

	messages     map[string]Message
	messageOrder []string
	historyLog   []historyEntry

	historyCounter int64
	expiredBelow   int64
	messageCounter int
)

type historyEntry struct {
	id        int64
	messageID string
}

func init() {
	messages = make(map[string]Message)
	historyCounter = 1000
	expiredBelow = 1000

	// Seed one of each engagement shape so a freshly started monitor has
	// something to classify after its baseline cycle.
	AddMessage(map[string]string{
		"From":        "lead@example.com",
		"Subject":     "Re: Your all-cash offer",
		"In-Reply-To": "<job-1@mail.truesoul.example>",
	}, "Sounds interesting, call me.")
	AddMessage(map[string]string{
		"From":    "mailer-daemon@googlemail.com",
		"Subject": "Delivery Status Notification (Failure)",
	}, "Your message could not be delivered: address not found.\nOriginal-Message-ID: <job-2@mail.truesoul.example>")
	AddMessage(map[string]string{
		"From":    "newsletter@example.com",
		"Subject": "Market update",
	}, "Nothing actionable here.")
}

// Profile returns the mailbox profile with the current history cursor.
func Profile(email string) (string, string) {
	mu.RLock()
	defer mu.RUnlock()
	return email, strconv.FormatInt(historyCounter, 10)
}

// History returns message-added records after startHistoryID, paginated.
func History(startHistoryID string, pageToken string, pageSize int) (HistoryPage, error) {
	start, err := strconv.ParseInt(startHistoryID, 10, 64)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("invalid startHistoryId %q", startHistoryID)
	}

	mu.RLock()
	defer mu.RUnlock()

	if start < expiredBelow {
		return HistoryPage{}, ErrHistoryExpired
	}

	var matched []historyEntry
	for _, entry := range historyLog {
		if entry.id > start {
			matched = append(matched, entry)
		}
	}

	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 || offset > len(matched) {
			return HistoryPage{}, fmt.Errorf("invalid pageToken %q", pageToken)
		}
	}

	end := offset + pageSize
	nextToken := ""
	if end < len(matched) {
		nextToken = strconv.Itoa(end)
	} else {
		end = len(matched)
	}

	page := HistoryPage{
		HistoryID:     strconv.FormatInt(historyCounter, 10),
		NextPageToken: nextToken,
	}
	for _, entry := range matched[offset:end] {
		var rec HistoryRecord
		rec.ID = strconv.FormatInt(entry.id, 10)
		rec.MessagesAdded = append(rec.MessagesAdded, struct {
			Message MessageRef `json:"message"`
		}{Message: MessageRef{ID: entry.messageID}})
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// Messages lists all stored message ids, newest last, paginated. The query
// string is accepted and ignored; the mock mailbox is small enough to
// backfill wholesale.
func Messages(pageToken string, pageSize int) (MessagePage, error) {
	mu.RLock()
	defer mu.RUnlock()

	offset := 0
	if pageToken != "" {
		var err error
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 || offset > len(messageOrder) {
			return MessagePage{}, fmt.Errorf("invalid pageToken %q", pageToken)
		}
	}

	end := offset + pageSize
	nextToken := ""
	if end < len(messageOrder) {
		nextToken = strconv.Itoa(end)
	} else {
		end = len(messageOrder)
	}

	page := MessagePage{NextPageToken: nextToken}
	for _, id := range messageOrder[offset:end] {
		page.Refs = append(page.Refs, MessageRef{ID: id})
	}
	return page, nil
}

// GetMessage returns one stored message by id.
func GetMessage(id string) (Message, bool) {
	mu.RLock()
	defer mu.RUnlock()
	msg, ok := messages[id]
	return msg, ok
}

// AddMessage stores a new message and appends a history record for it,
// advancing the mailbox's history cursor. Returns the stored message.
func AddMessage(headers map[string]string, body string) Message {
	mu.Lock()
	defer mu.Unlock()

	messageCounter++
	historyCounter++

	id := fmt.Sprintf("msg-%04d", messageCounter)
	payload := Part{
		MimeType: "text/plain",
		Body:     Body{Data: base64.URLEncoding.EncodeToString([]byte(body))},
	}
	for name, value := range headers {
		payload.Headers = append(payload.Headers, Header{Name: name, Value: value})
	}

	msg := Message{
		ID:           id,
		ThreadID:     "thread-" + id,
		InternalDate: strconv.FormatInt(time.Now().UnixMilli(), 10),
		Payload:      payload,
	}

	messages[id] = msg
	messageOrder = append(messageOrder, id)
	historyLog = append(historyLog, historyEntry{id: historyCounter, messageID: id})
	return msg
}

// ExpireHistory invalidates every previously handed-out cursor, forcing
// clients back through the baseline path.
func ExpireHistory() string {
	mu.Lock()
	defer mu.Unlock()

	historyCounter++
	expiredBelow = historyCounter
	historyLog = nil
	return strconv.FormatInt(historyCounter, 10)
}
