package monitor

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ActiveSenders(ctx context.Context) ([]models.Sender, error) {
	args := m.Called(ctx)
	var senders []models.Sender
	if v := args.Get(0); v != nil {
		senders = v.([]models.Sender)
	}
	return senders, args.Error(1)
}

func (m *mockStore) SetSenderWatermark(ctx context.Context, senderID uuid.UUID, historyID *string) error {
	args := m.Called(ctx, senderID, historyID)
	return args.Error(0)
}

func (m *mockStore) FindJobByMessageIDs(ctx context.Context, messageIDs []string, excludeStatus string) (*models.CampaignJob, error) {
	args := m.Called(ctx, messageIDs, excludeStatus)
	var job *models.CampaignJob
	if v := args.Get(0); v != nil {
		job = v.(*models.CampaignJob)
	}
	return job, args.Error(1)
}

func (m *mockStore) FindSentJobByMessageID(ctx context.Context, messageID string) (*models.CampaignJob, error) {
	args := m.Called(ctx, messageID)
	var job *models.CampaignJob
	if v := args.Get(0); v != nil {
		job = v.(*models.CampaignJob)
	}
	return job, args.Error(1)
}

func (m *mockStore) UpdateJobStatus(ctx context.Context, jobID int64, status string, at time.Time) error {
	args := m.Called(ctx, jobID, status, at)
	return args.Error(0)
}

func (m *mockStore) InsertEngagementEvent(ctx context.Context, event models.EngagementEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockMailbox struct {
	mock.Mock
}

func (m *mockMailbox) Profile(ctx context.Context) (gmail.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).(gmail.Profile), args.Error(1)
}

func (m *mockMailbox) ListHistory(ctx context.Context, startHistoryID, pageToken string) (gmail.HistoryPage, error) {
	args := m.Called(ctx, startHistoryID, pageToken)
	return args.Get(0).(gmail.HistoryPage), args.Error(1)
}

func (m *mockMailbox) GetMessage(ctx context.Context, id string) (*models.InboundMessage, error) {
	args := m.Called(ctx, id)
	var msg *models.InboundMessage
	if v := args.Get(0); v != nil {
		msg = v.(*models.InboundMessage)
	}
	return msg, args.Error(1)
}

func (m *mockMailbox) ListMessages(ctx context.Context, query, pageToken string) (gmail.MessagePage, error) {
	args := m.Called(ctx, query, pageToken)
	return args.Get(0).(gmail.MessagePage), args.Error(1)
}

func newTestMonitor(store Store, mailbox gmail.Mailbox) *Monitor {
	log := logrus.New()
	log.SetOutput(io.Discard)

	mon := New(store, func(ctx context.Context, senderEmail string) (gmail.Mailbox, error) {
		return mailbox, nil
	}, log)
	mon.MessageDelay = 0
	return mon
}
