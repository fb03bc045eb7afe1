// Package message renders alert text. Output is Telegram HTML; webhook
// receivers get the same string.
package message

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func label(s domain.Status) string {
	switch s {
	case domain.StatusDown:
		return "🔴 DOWN"
	case domain.StatusStalled:
		return "🟠 STALLED"
	case domain.StatusCatchingUp:
		return "🟡 CATCHING UP"
	case domain.StatusValidatorIssue:
		return "🟣 VALIDATOR ISSUE"
	default:
		return "🟢 UP"
	}
}

// Transition renders a status change.
func Transition(ev domain.HealthEvent) string {
	var b strings.Builder
	node := html.EscapeString(string(ev.NodeID))

	if ev.Current == domain.StatusUp {
		fmt.Fprintf(&b, "%s <b>%s</b> recovered (was %s)", label(ev.Current), node, ev.Previous)
	} else {
		fmt.Fprintf(&b, "%s <b>%s</b>", label(ev.Current), node)
		if ev.Previous != domain.StatusUp {
			fmt.Fprintf(&b, " (was %s)", ev.Previous)
		}
	}
	writeDetails(&b, ev.Details, ev.ObservedAt)
	return b.String()
}

// Reminder renders a cool-down re-notification for an ongoing problem.
func Reminder(node domain.NodeID, status domain.Status, since time.Time, details string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b> still %s", label(status), html.EscapeString(string(node)), status)
	if !since.IsZero() {
		fmt.Fprintf(&b, " for %s", now.Sub(since).Round(time.Second))
	}
	writeDetails(&b, details, now)
	return b.String()
}

// Release announces a new upstream software release.
func Release(repo, tag, name, url string) string {
	title := tag
	if name != "" && name != tag {
		title = fmt.Sprintf("%s (%s)", tag, name)
	}
	return fmt.Sprintf("📦 New release of <b>%s</b>: <a href=\"%s\">%s</a>",
		html.EscapeString(repo), html.EscapeString(url), html.EscapeString(title))
}

// ReleaseError reports that the release feed could not be read.
func ReleaseError(repo string, err error) string {
	return fmt.Sprintf("⚠️ Cannot read releases of <b>%s</b>\n<code>%s</code>",
		html.EscapeString(repo), html.EscapeString(err.Error()))
}

// Test is the body of the notify-test command.
func Test(now time.Time) string {
	return fmt.Sprintf("✅ nodewatch test alert\n<i>%s</i>", now.UTC().Format(timeLayout))
}

func writeDetails(b *strings.Builder, details string, at time.Time) {
	if details != "" {
		fmt.Fprintf(b, "\n%s", html.EscapeString(details))
	}
	if !at.IsZero() {
		fmt.Fprintf(b, "\n<i>%s</i>", at.UTC().Format(timeLayout))
	}
}
