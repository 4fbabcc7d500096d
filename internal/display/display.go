// Package display provides the terminal chat surface using Bubble Tea.
//
// The [UI] renders the session timeline in a scrolling viewport above
// a composing box and a status line. Session updates arrive on
// arbitrary goroutines; they are queued and forwarded to the Bubble Tea
// program in order, so the event loop is the only place the view state
// changes.
package display

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/maitri/internal/logger"
	"github.com/hammamikhairi/maitri/internal/session"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	micOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	micOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	micDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#52525b")).
				Strikethrough(true)

	sendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a")).
			Italic(true)

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Bot replies, soft sky blue.
	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// User lines, light zinc.
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	// Hints and the pending indicator.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	// Failed replies, soft coral.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))
)

// ── UI ───────────────────────────────────────────────────────────

// updateMsg carries a session update into the Bubble Tea loop.
type updateMsg session.Update

// UI drives the chat surface for one session.
//
// Call [NewUI] then [UI.Run] (blocking).
type UI struct {
	sess    *session.Controller
	log     *logger.Logger
	program *tea.Program
	updates chan session.Update
	quitCh  chan struct{} // closed when Run returns
	done    atomic.Bool
}

// NewUI creates the display for sess. Call Run() to start.
func NewUI(sess *session.Controller, log *logger.Logger) *UI {
	return &UI{
		sess:    sess,
		log:     log,
		updates: make(chan session.Update, 256),
		quitCh:  make(chan struct{}),
	}
}

// Run starts the Bubble Tea event loop. Blocks until the user quits or
// ctx is cancelled. Submissions made from the UI use ctx.
func (u *UI) Run(ctx context.Context) error {
	m := newModel(ctx, u.sess, u.log)

	u.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := u.sess.Subscribe(u.enqueue)
	go u.forward()

	_, err := u.program.Run()
	unsubscribe()
	u.done.Store(true)
	close(u.quitCh)

	if err != nil && ctx.Err() != nil {
		// Cancellation is a normal way to leave.
		return nil
	}
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

// enqueue is the session subscriber. It never calls into the program
// directly: updates published from inside Update would deadlock on
// Program.Send.
func (u *UI) enqueue(up session.Update) {
	if u.done.Load() {
		return
	}
	select {
	case u.updates <- up:
	case <-u.quitCh:
	}
}

func (u *UI) forward() {
	for {
		select {
		case up := <-u.updates:
			u.program.Send(updateMsg(up))
		case <-u.quitCh:
			return
		}
	}
}
