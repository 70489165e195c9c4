package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/oauth2/google"

	"github.com/truesoul/outreach/internal/models"
)

const (
	defaultAPIURL = "https://gmail.googleapis.com"
	readonlyScope = "https://www.googleapis.com/auth/gmail.readonly"

	backfillPageSize = 500
)

// Service implements Mailbox against the Gmail REST v1 surface for a single
// impersonated mailbox.
type Service struct {
	baseURL string
	email   string
	client  *http.Client
}

// NewService builds an authenticated mailbox session for the given sender
// address. With gmail.service_account_key configured, the session uses
// domain-wide delegation (service-account JWT with the sender as subject).
// Without a key, a non-default gmail.api_url must point at a local mock.
func NewService(ctx context.Context, senderEmail string) (*Service, error) {
	baseURL := viper.GetString("gmail.api_url")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	keyJSON := viper.GetString("gmail.service_account_key")
	if keyJSON == "" {
		if baseURL == defaultAPIURL {
			return nil, fmt.Errorf("gmail.service_account_key not configured")
		}
		return &Service{
			baseURL: baseURL,
			email:   senderEmail,
			client:  &http.Client{Timeout: 30 * time.Second},
		}, nil
	}

	cfg, err := google.JWTConfigFromJSON(normalizeKey(keyJSON), readonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	cfg.Subject = senderEmail

	client := cfg.Client(ctx)
	client.Timeout = 30 * time.Second

	return &Service{
		baseURL: baseURL,
		email:   senderEmail,
		client:  client,
	}, nil
}

// normalizeKey repairs keys passed through environments that double-escape
// newlines in the private_key field.
func normalizeKey(keyJSON string) []byte {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(keyJSON), &fields); err != nil {
		return []byte(keyJSON)
	}
	pk, ok := fields["private_key"].(string)
	if !ok || !strings.Contains(pk, `\n`) {
		return []byte(keyJSON)
	}
	fields["private_key"] = strings.ReplaceAll(pk, `\n`, "\n")
	repaired, err := json.Marshal(fields)
	if err != nil {
		return []byte(keyJSON)
	}
	return repaired
}

// Wire types for the subset of the Gmail API the monitor consumes.

type apiProfile struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    string `json:"historyId"`
}

type apiMessageRef struct {
	ID string `json:"id"`
}

type apiHistoryRecord struct {
	MessagesAdded []struct {
		Message apiMessageRef `json:"message"`
	} `json:"messagesAdded"`
}

type apiHistoryResponse struct {
	History       []apiHistoryRecord `json:"history"`
	HistoryID     string             `json:"historyId"`
	NextPageToken string             `json:"nextPageToken"`
}

type apiMessageList struct {
	Messages      []apiMessageRef `json:"messages"`
	NextPageToken string          `json:"nextPageToken"`
}

type apiHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type apiPart struct {
	MimeType string      `json:"mimeType"`
	Headers  []apiHeader `json:"headers"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []apiPart `json:"parts"`
}

type apiMessage struct {
	ID           string  `json:"id"`
	ThreadID     string  `json:"threadId"`
	InternalDate string  `json:"internalDate"`
	Payload      apiPart `json:"payload"`
}

func (s *Service) Profile(ctx context.Context) (Profile, error) {
	var resp apiProfile
	if err := s.get(ctx, "/gmail/v1/users/me/profile", nil, &resp); err != nil {
		return Profile{}, err
	}
	return Profile{EmailAddress: resp.EmailAddress, HistoryID: resp.HistoryID}, nil
}

func (s *Service) ListHistory(ctx context.Context, startHistoryID, pageToken string) (HistoryPage, error) {
	params := url.Values{}
	params.Set("startHistoryId", startHistoryID)
	params.Set("historyTypes", "messageAdded")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp apiHistoryResponse
	if err := s.get(ctx, "/gmail/v1/users/me/history", params, &resp); err != nil {
		if isNotFound(err) {
			return HistoryPage{}, ErrHistoryExpired
		}
		return HistoryPage{}, err
	}

	page := HistoryPage{
		HistoryID:     resp.HistoryID,
		NextPageToken: resp.NextPageToken,
	}
	for _, rec := range resp.History {
		for _, added := range rec.MessagesAdded {
			if added.Message.ID != "" {
				page.MessageIDs = append(page.MessageIDs, added.Message.ID)
			}
		}
	}
	return page, nil
}

func (s *Service) GetMessage(ctx context.Context, id string) (*models.InboundMessage, error) {
	params := url.Values{}
	params.Set("format", "full")

	var resp apiMessage
	if err := s.get(ctx, "/gmail/v1/users/me/messages/"+url.PathEscape(id), params, &resp); err != nil {
		if isNotFound(err) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	headers := make(map[string]string, len(resp.Payload.Headers))
	for _, h := range resp.Payload.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}

	msg := &models.InboundMessage{
		ID:       resp.ID,
		ThreadID: resp.ThreadID,
		Headers:  headers,
		Body:     messageBody(resp.Payload),
	}
	if ms, err := strconv.ParseInt(resp.InternalDate, 10, 64); err == nil {
		msg.ReceivedAt = time.UnixMilli(ms).UTC()
	} else {
		msg.ReceivedAt = time.Now().UTC()
	}
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, query, pageToken string) (MessagePage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(backfillPageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp apiMessageList
	if err := s.get(ctx, "/gmail/v1/users/me/messages", params, &resp); err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{NextPageToken: resp.NextPageToken}
	for _, ref := range resp.Messages {
		page.MessageIDs = append(page.MessageIDs, ref.ID)
	}
	return page, nil
}

// messageBody extracts the plain-text body: the first text/plain part wins,
// falling back to the top-level body data.
func messageBody(payload apiPart) string {
	if part, ok := findTextPart(payload); ok {
		return decodeBody(part.Body.Data)
	}
	return decodeBody(payload.Body.Data)
}

func findTextPart(part apiPart) (apiPart, bool) {
	if part.MimeType == "text/plain" && part.Body.Data != "" {
		return part, true
	}
	for _, child := range part.Parts {
		if found, ok := findTextPart(child); ok {
			return found, ok
		}
	}
	return apiPart{}, false
}

func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (s *Service) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &statusError{status: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
