package monitor

import (
	"regexp"
	"strings"

	"github.com/truesoul/outreach/internal/models"
)

// Classification is ordered: the first matching predicate wins, so a
// message is never attributed to two categories. Delivery confirmation is
// not a predicate here because it requires a job-store lookup; the
// reconciler applies it as the fallback when no predicate matches.
var predicates = []struct {
	event string
	match func(*models.InboundMessage) bool
}{
	{models.EventReplied, isReply},
	{models.EventBounced, isBounce},
}

// Classify returns the engagement event type a message signals, or
// ("", false) when neither reply nor bounce heuristics match.
func Classify(msg *models.InboundMessage) (string, bool) {
	for _, p := range predicates {
		if p.match(msg) {
			return p.event, true
		}
	}
	return "", false
}

var replySubjectMarkers = []string{"re:", "aw:"}

func isReply(msg *models.InboundMessage) bool {
	if msg.Header("In-Reply-To") != "" || msg.Header("References") != "" {
		return true
	}
	subject := strings.ToLower(msg.Subject())
	for _, marker := range replySubjectMarkers {
		if strings.HasPrefix(subject, marker) {
			return true
		}
	}
	if auto := strings.ToLower(msg.Header("Auto-Submitted")); auto != "" && auto != "no" {
		return true
	}
	return false
}

var (
	bounceSenderMarkers = []string{"mailer-daemon@", "postmaster@"}

	bounceSubjectPhrases = []string{
		"undeliverable",
		"delivery status notification",
		"failure notice",
	}

	bounceBodyPhrases = []string{
		"mailbox unavailable",
		"address not found",
		"recipient rejected",
		"user does not exist",
	}
)

func isBounce(msg *models.InboundMessage) bool {
	from := strings.ToLower(msg.From())
	for _, marker := range bounceSenderMarkers {
		if strings.Contains(from, marker) {
			return true
		}
	}
	subject := strings.ToLower(msg.Subject())
	for _, phrase := range bounceSubjectPhrases {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	body := strings.ToLower(msg.Body)
	for _, phrase := range bounceBodyPhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// referencedMessageIDs collects the Message-IDs a reply points back to,
// from In-Reply-To and References. Either header may list several ids;
// angle brackets are stripped and duplicates collapse.
func referencedMessageIDs(msg *models.InboundMessage) []string {
	seen := make(map[string]bool)
	var ids []string

	collect := func(headerValue string) {
		// References sometimes arrive with ids butted together.
		headerValue = strings.ReplaceAll(headerValue, "><", "> <")
		for _, token := range strings.Fields(headerValue) {
			id := strings.Trim(token, "<> ")
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	collect(msg.Header("In-Reply-To"))
	collect(msg.Header("References"))
	return ids
}

var originalMessageIDPattern = regexp.MustCompile(`(?i)Original-Message-ID:\s*<([^>]+)>`)

// bounceOriginalMessageID extracts the Message-ID of the bounced outbound
// message from a delivery report body, falling back to the In-Reply-To
// header some reporting MTAs use instead. Empty when the bounce carries
// neither, which makes it unattributable.
func bounceOriginalMessageID(msg *models.InboundMessage) string {
	if m := originalMessageIDPattern.FindStringSubmatch(msg.Body); m != nil {
		return m[1]
	}
	if inReplyTo := strings.Trim(msg.Header("In-Reply-To"), "<> "); inReplyTo != "" {
		return strings.Fields(inReplyTo)[0]
	}
	return ""
}

// bracketed returns the canonical angle-bracketed form a Message-ID is
// stored under in campaign_jobs.
func bracketed(id string) string {
	return "<" + strings.Trim(id, "<> ") + ">"
}
