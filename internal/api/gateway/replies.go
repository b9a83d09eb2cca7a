package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/service"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

const (
	replyNotStaff      = "⛔ Only staff members can do this."
	replyInternal      = "Something went wrong. Please try again later."
	replyDecided       = "⚠️ This delivery has already been decided."
	replyRankingActive = "⚠️ An automatic ranking is already active. Stop it first with /ranking-stop."
	replyPanelPosted   = "Panel posted."
)

var sentinelReplies = []struct {
	target error
	reply  string
}{
	{service.ErrNotStaff, replyNotStaff},
	{service.ErrAlreadyDecided, replyDecided},
	{service.ErrRankingActive, replyRankingActive},
	{service.ErrMissingDeliveryID, "❌ Error: delivery ID not found on the approval record."},
	{service.ErrDeliveryNotFound, "❌ Error: this delivery was not found in the database."},
	{service.ErrRescueUnavailable, "❌ Configuration error: the rescue alert channel was not found."},
	{service.ErrProvisionFailed, "❌ Could not create your ticket channel. Please contact staff."},
	{capture.ErrAwaitInProgress, "⚠️ You already have an upload in progress here. Finish it first."},
}

// errorReply turns a workflow error into the ephemeral text shown to the actor.
func errorReply(err error, evidenceTimeout time.Duration) string {
	if errors.Is(err, service.ErrSubmissionTimeout) || errors.Is(err, capture.ErrTimeout) {
		return fmt.Sprintf("⏰ Time expired! You did not send a screenshot within %s. Please start again.", humanDuration(evidenceTimeout))
	}
	for _, entry := range sentinelReplies {
		if errors.Is(err, entry.target) {
			return entry.reply
		}
	}
	if errorutil.IsCode(err, errorutil.CodeValidation) {
		return "❌ " + capitalize(errorutil.ToDomainError(err).Message) + "."
	}
	return replyInternal
}

func uploadPrompt(timeout time.Duration) string {
	return fmt.Sprintf("📸 Now send the screenshot in this channel. You have %s.", humanDuration(timeout))
}

func closeNotice(delay time.Duration) string {
	if delay <= 0 {
		return "🔒 Closing this ticket."
	}
	return fmt.Sprintf("🔒 This ticket will be closed in %s.", humanDuration(delay))
}

func withWarnings(text string, warnings []string) string {
	if len(warnings) == 0 {
		return text
	}
	return text + "\n" + strings.Join(warnings, "\n")
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		d = capture.DefaultTimeout
	case d < time.Second:
		return d.String()
	}
	if d%time.Minute == 0 {
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	secs := int(d / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
