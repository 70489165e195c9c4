package monitor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

func strPtr(s string) *string { return &s }

func watermarkEquals(want string) interface{} {
	return mock.MatchedBy(func(h *string) bool {
		return h != nil && *h == want
	})
}

func nilWatermark() interface{} {
	return mock.MatchedBy(func(h *string) bool { return h == nil })
}

func TestScan_FirstRunEstablishesBaseline(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{ID: uuid.New(), Email: "a@truesoul.example"}

	mailbox.On("Profile", mock.Anything).Return(gmail.Profile{EmailAddress: sender.Email, HistoryID: "100"}, nil)
	store.On("SetSenderWatermark", mock.Anything, sender.ID, watermarkEquals("100")).Return(nil)

	ids, err := mon.scan(context.Background(), mailbox, sender)
	assert.NoError(t, err)
	assert.Empty(t, ids)

	mailbox.AssertNotCalled(t, "ListHistory", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
	mailbox.AssertExpectations(t)
}

func TestScan_UnchangedWatermarkWritesNothing(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{ID: uuid.New(), Email: "a@truesoul.example", LastHistoryID: strPtr("100")}

	mailbox.On("ListHistory", mock.Anything, "100", "").
		Return(gmail.HistoryPage{HistoryID: "100"}, nil)

	ids, err := mon.scan(context.Background(), mailbox, sender)
	assert.NoError(t, err)
	assert.Empty(t, ids)

	store.AssertNotCalled(t, "SetSenderWatermark", mock.Anything, mock.Anything, mock.Anything)
}

func TestScan_PaginatesDedupesAndAdvancesWatermark(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{ID: uuid.New(), Email: "a@truesoul.example", LastHistoryID: strPtr("100")}

	mailbox.On("ListHistory", mock.Anything, "100", "").
		Return(gmail.HistoryPage{HistoryID: "150", MessageIDs: []string{"m1", "m2"}, NextPageToken: "page2"}, nil)
	mailbox.On("ListHistory", mock.Anything, "100", "page2").
		Return(gmail.HistoryPage{HistoryID: "200", MessageIDs: []string{"m2", "m3"}}, nil)
	store.On("SetSenderWatermark", mock.Anything, sender.ID, watermarkEquals("200")).Return(nil)

	ids, err := mon.scan(context.Background(), mailbox, sender)
	assert.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)

	store.AssertExpectations(t)
	mailbox.AssertExpectations(t)
}

func TestScan_HistoryExpiredResetsWatermark(t *testing.T) {
	store := &mockStore{}
	mailbox := &mockMailbox{}
	mon := newTestMonitor(store, mailbox)

	sender := models.Sender{ID: uuid.New(), Email: "a@truesoul.example", LastHistoryID: strPtr("100")}

	mailbox.On("ListHistory", mock.Anything, "100", "").
		Return(gmail.HistoryPage{}, gmail.ErrHistoryExpired)
	store.On("SetSenderWatermark", mock.Anything, sender.ID, nilWatermark()).Return(nil)

	ids, err := mon.scan(context.Background(), mailbox, sender)
	assert.NoError(t, err)
	assert.Empty(t, ids)

	store.AssertExpectations(t)
}
