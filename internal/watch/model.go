// Package watch is the live session view: a bubbletea program that polls
// the engine on a timer and whenever the filesystem notifier fires, and
// only replaces its rows when the session fingerprint changes.
package watch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/detector"
	"github.com/boshu2/sessionwatch/internal/formatter"
	"github.com/boshu2/sessionwatch/internal/types"
)

// DefaultInterval is the poll period when no wakeups arrive.
const DefaultInterval = 2 * time.Second

// Source produces the current session list.
type Source interface {
	Sessions(ctx context.Context) ([]types.SessionRecord, error)
}

type (
	tickMsg     time.Time
	wakeMsg     struct{}
	sessionsMsg struct {
		records []types.SessionRecord
		err     error
	}
)

// Model is the bubbletea model of the live view.
type Model struct {
	ctx      context.Context
	src      Source
	clock    clock.Clock
	interval time.Duration
	wake     <-chan struct{}
	keys     KeyMap
	help     help.Model

	records     []types.SessionRecord
	fingerprint string
	err         error
	updated     time.Time
	changes     int

	cursor int
	offset int
	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithWake sets a channel whose values trigger an immediate poll.
func WithWake(c <-chan struct{}) Option {
	return func(m *Model) { m.wake = c }
}

// WithClock sets the clock used for ages.
func WithClock(c clock.Clock) Option {
	return func(m *Model) { m.clock = c }
}

// NewModel creates a live view over src. ctx bounds every poll.
func NewModel(ctx context.Context, src Source, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		src:      src,
		clock:    clock.Real(),
		interval: DefaultInterval,
		keys:     DefaultKeyMap,
		help:     help.New(),
		width:    120,
		height:   30,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick(), m.waitWake())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clamp()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.poll(), m.tick())

	case wakeMsg:
		return m, tea.Batch(m.poll(), m.waitWake())

	case sessionsMsg:
		m.updated = m.clock.Now()
		m.err = msg.err
		if fp := detector.Fingerprint(msg.records); fp != m.fingerprint {
			m.fingerprint = fp
			m.records = msg.records
			m.changes++
			m.clamp()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
		case key.Matches(msg, m.keys.Bottom):
			m.cursor = max(0, len(m.records)-1)
		case key.Matches(msg, m.keys.Refresh):
			return m, m.poll()
		}
		m.clamp()
	}
	return m, nil
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		records, err := m.src.Sessions(m.ctx)
		return sessionsMsg{records: records, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitWake() tea.Cmd {
	if m.wake == nil {
		return nil
	}
	wake := m.wake
	return func() tea.Msg {
		if _, ok := <-wake; !ok {
			return nil
		}
		return wakeMsg{}
	}
}

// Selected returns the highlighted session.
func (m Model) Selected() (types.SessionRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return types.SessionRecord{}, false
	}
	return m.records[m.cursor], true
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	now := m.clock.Now()

	active := 0
	for _, r := range m.records {
		if r.State == types.StateActive {
			active++
		}
	}
	status := fmt.Sprintf("  %d sessions, %d active", len(m.records), active)
	if !m.updated.IsZero() {
		status += ", updated " + formatter.Age(m.updated, now)
	}
	b.WriteString(titleStyle.Render("swatch") + dimStyle.Render(status) + "\n")
	b.WriteString(headerStyle.Render(m.row("", "PID", "SESSION", "CWD", "LAST", "ACTIVITY")) + "\n")

	visible := m.visibleRows()
	end := min(m.offset+visible, len(m.records))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRecord(m.records[i], i == m.cursor, now) + "\n")
	}
	if len(m.records) == 0 {
		b.WriteString(dimStyle.Render("  no running sessions") + "\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRecord(r types.SessionRecord, selected bool, now time.Time) string {
	activity := r.CurrentActivity
	if activity == "" && len(r.RecentActivity) > 0 {
		activity = r.RecentActivity[len(r.RecentActivity)-1]
	}
	name := r.Slug
	if name == "" {
		name = r.SessionID
	}
	line := m.row("", strconv.Itoa(r.PID), name, r.WorkingDirectory, formatter.Age(r.LastActivity, now), activity)
	if selected {
		return "●" + selectedStyle.Render(line[len(" "):])
	}
	if r.State == types.StateActive {
		return activeStyle.Render("●") + line[len(" "):]
	}
	return waitingStyle.Render("○") + line[len(" "):]
}

// row lays out one line. The first cell is a one-column marker.
func (m Model) row(marker, pid, session, cwd, last, activity string) string {
	w := m.colWidths()
	cols := []string{
		pad(marker, 1),
		pad(pid, w.pid),
		pad(session, w.session),
		pad(cwd, w.cwd),
		pad(last, w.last),
		pad(activity, w.activity),
	}
	return strings.Join(cols, " ")
}

type colWidths struct {
	pid, session, cwd, last, activity int
}

func (m Model) colWidths() colWidths {
	w := colWidths{pid: 7, session: 24, cwd: 30, last: 16}
	used := 1 + w.pid + w.session + w.cwd + w.last + 5
	w.activity = max(m.width-used, 20)
	return w
}

func (m Model) visibleRows() int {
	// Title, header and help line.
	rows := m.height - 3
	if m.err != nil {
		rows--
	}
	return max(rows, 1)
}

func (m *Model) clamp() {
	if m.cursor >= len(m.records) {
		m.cursor = max(0, len(m.records)-1)
	}
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// pad truncates or pads s to exactly width display columns.
func pad(s string, width int) string {
	s = ansi.Truncate(s, width, "…")
	if n := ansi.StringWidth(s); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}
