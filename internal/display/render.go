package display

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/session"
)

// markdown renders final bot replies. A final reply never changes, so
// output is cached per message until the wrap width changes.
type markdown struct {
	width int
	r     *glamour.TermRenderer
	cache map[domain.MessageID]string
}

func newMarkdown() *markdown {
	return &markdown{cache: make(map[domain.MessageID]string)}
}

func (md *markdown) setWidth(w int) {
	if w < 20 {
		w = 20
	}
	if w == md.width && md.r != nil {
		return
	}
	md.width = w
	md.cache = make(map[domain.MessageID]string)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(w),
	)
	if err != nil {
		md.r = nil
		return
	}
	md.r = r
}

func (md *markdown) render(msg domain.Message) string {
	if out, ok := md.cache[msg.ID]; ok {
		return out
	}
	out := botStyle.Render(msg.Text)
	if md.r != nil {
		if rendered, err := md.r.Render(msg.Text); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	md.cache[msg.ID] = out
	return out
}

// renderTimeline draws every message in order. frame is the current
// spinner frame shown next to pending placeholders.
func renderTimeline(msgs []domain.Message, md *markdown, frame string) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg, md, frame))
	}
	return b.String()
}

func renderMessage(msg domain.Message, md *markdown, frame string) string {
	if msg.Author == domain.AuthorUser {
		return promptStyle.Render("  you") + secondaryStyle.Render("  ") + userStyle.Render(msg.Text)
	}

	switch msg.Status {
	case domain.StatusPending:
		return "  " + frame + " " + secondaryStyle.Render(session.Placeholder)
	case domain.StatusError:
		return errorStyle.Render("  " + msg.Text)
	default:
		if md == nil {
			return botStyle.Render("  " + msg.Text)
		}
		return md.render(msg)
	}
}

// renderStatus draws the mic and sending indicators.
func renderStatus(width int, supported, listening, sending bool) string {
	var mic string
	switch {
	case !supported:
		mic = micDisabledStyle.Render("mic unavailable")
	case listening:
		mic = micOnStyle.Render("● listening") + secondaryStyle.Render("  ctrl+t to stop")
	default:
		mic = micOffStyle.Render("mic off") + secondaryStyle.Render("  ctrl+t to talk")
	}

	send := secondaryStyle.Render("enter to send")
	if sending {
		send = sendingStyle.Render("waiting for reply…")
	}

	content := " " + mic + sepStyle.Render("  │  ") + send + " "
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}
