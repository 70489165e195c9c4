package monitor

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

// TestRunCycle_ReplyEndToEnd walks one full cycle: a sender with an existing
// watermark, two history pages, one reply among the new messages.
func TestRunCycle_ReplyEndToEnd(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{
		ID:            uuid.New(),
		Name:          "Chris",
		Email:         "chris@truesoul.example",
		LastHistoryID: strPtr("1000"),
		IsActive:      true,
	}
	store.On("ActiveSenders", mock.Anything).Return([]models.Sender{sender}, nil)

	mailbox.On("ListHistory", mock.Anything, "1000", "").
		Return(gmail.HistoryPage{HistoryID: "1050", MessageIDs: []string{"m1"}, NextPageToken: "p2"}, nil)
	mailbox.On("ListHistory", mock.Anything, "1000", "p2").
		Return(gmail.HistoryPage{HistoryID: "1100", MessageIDs: []string{"m2"}}, nil)
	store.On("SetSenderWatermark", mock.Anything, sender.ID, watermarkEquals("1100")).Return(nil)

	reply := inboundMessage("m1", map[string]string{
		"from":        "lead@example.com",
		"subject":     "Re: Your all-cash offer",
		"in-reply-to": "<job-123@mail.truesoul.example>",
	}, "Yes, tell me more")
	// m2 is unrelated inbound mail: no reply, no bounce, no Message-Id match.
	other := inboundMessage("m2", map[string]string{
		"from":    "newsletter@example.com",
		"subject": "Weekly digest",
	}, "news")

	mailbox.On("GetMessage", mock.Anything, "m1").Return(reply, nil)
	mailbox.On("GetMessage", mock.Anything, "m2").Return(other, nil)

	store.On("FindJobByMessageIDs", mock.Anything, []string{"<job-123@mail.truesoul.example>"}, models.JobStatusReplied).
		Return(&models.CampaignJob{ID: 123, Status: models.JobStatusSent}, nil)
	store.On("UpdateJobStatus", mock.Anything, int64(123), models.JobStatusReplied, reply.ReceivedAt).Return(nil)
	store.On("InsertEngagementEvent", mock.Anything, models.EngagementEvent{
		CampaignJobID:  123,
		EmailMessageID: "m1",
		EventType:      models.EventReplied,
		EventTimestamp: reply.ReceivedAt,
	}).Return(nil)

	err := mon.RunCycle(context.Background())
	assert.NoError(t, err)

	store.AssertExpectations(t)
	mailbox.AssertExpectations(t)
	// m2 must not have produced any write.
	store.AssertNumberOfCalls(t, "UpdateJobStatus", 1)
	store.AssertNumberOfCalls(t, "InsertEngagementEvent", 1)
}

func TestRunCycle_SenderFailureDoesNotAbortCycle(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}

	broken := models.Sender{ID: uuid.New(), Email: "broken@truesoul.example", LastHistoryID: strPtr("1")}
	healthy := models.Sender{ID: uuid.New(), Email: "healthy@truesoul.example", LastHistoryID: strPtr("50")}
	store.On("ActiveSenders", mock.Anything).Return([]models.Sender{broken, healthy}, nil)

	mailbox.On("ListHistory", mock.Anything, "1", "").
		Return(gmail.HistoryPage{}, assert.AnError)
	mailbox.On("ListHistory", mock.Anything, "50", "").
		Return(gmail.HistoryPage{HistoryID: "50"}, nil)

	mon := newTestMonitor(store, mailbox)
	err := mon.RunCycle(context.Background())
	assert.NoError(t, err)

	mailbox.AssertExpectations(t)
}

func TestRunCycle_NoActiveSenders(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	store.On("ActiveSenders", mock.Anything).Return([]models.Sender{}, nil)

	err := mon.RunCycle(context.Background())
	assert.NoError(t, err)

	mailbox.AssertNotCalled(t, "ListHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestBackfill_PaginatesAndProcessesEveryMessage(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{ID: uuid.New(), Email: "chris@truesoul.example"}
	store.On("ActiveSenders", mock.Anything).Return([]models.Sender{sender}, nil)

	dateQuery := mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "after:20")
	})
	mailbox.On("ListMessages", mock.Anything, dateQuery, "").
		Return(gmail.MessagePage{MessageIDs: []string{"h1"}, NextPageToken: "next"}, nil)
	mailbox.On("ListMessages", mock.Anything, dateQuery, "next").
		Return(gmail.MessagePage{MessageIDs: []string{"h2"}}, nil)

	for _, id := range []string{"h1", "h2"} {
		mailbox.On("GetMessage", mock.Anything, id).
			Return(inboundMessage(id, map[string]string{"subject": "hello"}, ""), nil)
	}

	err := mon.Backfill(context.Background(), 3)
	assert.NoError(t, err)

	mailbox.AssertExpectations(t)
	mailbox.AssertNumberOfCalls(t, "GetMessage", 2)
	// Backfill never touches the history watermark.
	store.AssertNotCalled(t, "SetSenderWatermark", mock.Anything, mock.Anything, mock.Anything)
}
