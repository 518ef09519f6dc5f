// Package tui implements nmstop, a terminal console over the merged view
// and the metrics of one monitored object.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"nmsview/internal/domain"
	"nmsview/internal/metrics"
	"nmsview/internal/service"
)

// Dashboard supplies the merged view
type Dashboard interface {
	MergedView() service.DashboardView
	Refresh(ctx context.Context) error
}

// Monitor supplies per-object series
type Monitor interface {
	Open(ctx context.Context, objectID int64) (bool, error)
	Close(objectID int64) error
	Series(objectID int64) (domain.SeriesSet, error)
	Summary(objectID int64) (map[string]string, error)
}

type tickMsg struct{}
type viewMsg service.DashboardView
type errMsg struct{ error }

type openedMsg struct {
	objectID int64
	ip       string
}

type monitorMsg struct {
	objectID int64
	series   domain.SeriesSet
	summary  map[string]string
}

// Model is the bubbletea model of the console
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	dashboard Dashboard
	monitor   Monitor
	interval  time.Duration
	now       func() time.Time

	table table.Model
	view  service.DashboardView

	// monitored object, zero when none
	objectID int64
	objectIP string
	series   domain.SeriesSet
	summary  map[string]string

	width, height int
	err           error
}

// New creates the console model. interval is the screen refresh period.
func New(dashboard Dashboard, monitor Monitor, interval time.Duration) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = time.Second
	}

	t := table.New()
	t.SetHeight(12)
	t.SetWidth(100)
	t.Focus()

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		dashboard: dashboard,
		monitor:   monitor,
		interval:  interval,
		now:       time.Now,
		table:     t,
		series:    domain.EmptySeriesSet(),
	}
	m.rebuildTable()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// fetch reads the published view and, when monitoring, the object's series
func (m Model) fetch() tea.Cmd {
	cmds := []tea.Cmd{func() tea.Msg {
		return viewMsg(m.dashboard.MergedView())
	}}
	if m.objectID != 0 {
		cmds = append(cmds, m.fetchMonitor(m.objectID))
	}
	return tea.Batch(cmds...)
}

func (m Model) fetchMonitor(objectID int64) tea.Cmd {
	return func() tea.Msg {
		series, err := m.monitor.Series(objectID)
		if err != nil {
			return errMsg{err}
		}
		summary, err := m.monitor.Summary(objectID)
		if err != nil {
			return errMsg{err}
		}
		return monitorMsg{objectID: objectID, series: series, summary: summary}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		if err := m.dashboard.Refresh(m.ctx); err != nil {
			return errMsg{err}
		}
		return viewMsg(m.dashboard.MergedView())
	}
}

func (m Model) open(row domain.MergedViewRow) tea.Cmd {
	previous := m.objectID
	objectID := row.Object.ID
	return func() tea.Msg {
		if previous != 0 && previous != objectID {
			_ = m.monitor.Close(previous)
		}
		if _, err := m.monitor.Open(m.ctx, objectID); err != nil {
			return errMsg{err}
		}
		return openedMsg{objectID: objectID, ip: row.IP}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		headerH := lipgloss.Height(headerStyle.Render("x"))
		footerH := lipgloss.Height(footerStyle.Render("x"))
		base := m.height - headerH - footerH - 2
		if base < 8 {
			base = 8
		}
		if m.objectID != 0 {
			m.table.SetHeight(int(float64(base) * 0.4))
		} else {
			m.table.SetHeight(base)
		}
		m.table.SetWidth(m.width - 4)
		m.rebuildTable()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case viewMsg:
		m.view = service.DashboardView(msg)
		m.rebuildTable()
		if n := len(m.view.Rows); n > 0 && m.table.Cursor() >= n {
			m.table.SetCursor(n - 1)
		}
		return m, nil

	case openedMsg:
		m.objectID, m.objectIP = msg.objectID, msg.ip
		m.series = domain.EmptySeriesSet()
		m.summary = nil
		m.err = nil
		return m, tea.Batch(m.fetchMonitor(msg.objectID), m.resize())

	case monitorMsg:
		if msg.objectID != m.objectID {
			return m, nil
		}
		m.series = msg.series
		m.summary = msg.summary
		return m, nil

	case errMsg:
		m.err = msg.error
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.objectID != 0 {
				_ = m.monitor.Close(m.objectID)
			}
			m.cancel()
			return m, tea.Quit

		case "r":
			return m, m.refresh()

		case "enter":
			row, ok := m.selectedRow()
			if !ok || row.Kind != domain.RowKindObject || row.Object == nil || row.Object.ID == 0 {
				return m, nil
			}
			return m, m.open(row)

		case "esc":
			if m.objectID == 0 {
				return m, nil
			}
			id := m.objectID
			m.objectID, m.objectIP = 0, ""
			m.series = domain.EmptySeriesSet()
			m.summary = nil
			return m, tea.Batch(func() tea.Msg {
				_ = m.monitor.Close(id)
				return nil
			}, m.resize())

		case "up", "k", "down", "j", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// resize replays the last window size so the layout follows the panel
func (m Model) resize() tea.Cmd {
	if m.width == 0 {
		return nil
	}
	return func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }
}

func (m Model) selectedRow() (domain.MergedViewRow, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.view.Rows) {
		return domain.MergedViewRow{}, false
	}
	return m.view.Rows[i], true
}

func (m *Model) rebuildTable() {
	wKind, wIP, wType, wCred, wPoll, wActions := colWidths(m.table.Width())
	cols := []table.Column{
		{Title: "KIND", Width: wKind},
		{Title: "IP", Width: wIP},
		{Title: "TYPE", Width: wType},
		{Title: "CREDENTIAL", Width: wCred},
		{Title: "POLL (ms)", Width: wPoll},
		{Title: "ACTIONS", Width: wActions},
	}

	rows := make([]table.Row, 0, len(m.view.Rows))
	for _, r := range m.view.Rows {
		actions := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			actions = append(actions, string(a))
		}
		kind := string(r.Kind)
		if r.Object != nil && r.Object.ID == m.objectID && m.objectID != 0 {
			kind = "▶ " + kind
		}
		rows = append(rows, table.Row{
			kind,
			r.IP,
			string(r.DeviceType),
			r.CredentialName,
			r.PollInterval,
			strings.Join(actions, ","),
		})
	}
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
}

// colWidths gives the credential column whatever the fixed columns leave
func colWidths(total int) (wKind, wIP, wType, wCred, wPoll, wActions int) {
	wKind, wIP, wType, wPoll, wActions = 12, 16, 8, 15, 18
	wCred = clamp(total-(wKind+wIP+wType+wPoll+wActions)-12, 10, 40)
	return
}

func (m Model) View() string {
	status := goodStyle.Render("live")
	if m.view.Stale {
		status = warnStyle.Render("stale")
	}
	updated := "never"
	if !m.view.UpdatedAt.IsZero() {
		updated = humanize.RelTime(m.view.UpdatedAt, m.now(), "ago", "from now")
	}
	head := headerStyle.Render(fmt.Sprintf("nmstop │ rows: %d  updated: %s  ", len(m.view.Rows), updated)) + status

	body := lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())

	panel := ""
	if m.objectID != 0 {
		width := m.width - 2
		if width < 40 {
			width = 78
		}
		panel = boxStyle.Width(width).Render(m.renderMonitor(width - 4))
	}

	errLine := ""
	if m.err != nil {
		errLine = dangerStyle.Render("error: " + m.err.Error())
	} else if m.view.LastError != "" {
		errLine = warnStyle.Render("last poll failed: " + m.view.LastError)
	}

	footer := footerStyle.Render("↑/↓ move • [enter] monitor object • [esc] close monitor • [r] refresh • [q] quit")
	return lipgloss.JoinVertical(lipgloss.Left, head, body, panel, errLine, footer)
}

func (m Model) renderMonitor(width int) string {
	title := titleStyle.Render(fmt.Sprintf("Object %d  %s", m.objectID, m.objectIP))

	summary := m.summary
	if summary == nil {
		summary = metrics.Summary(nil)
	}
	var left, right []string
	for i, f := range metrics.SummaryLayout {
		line := fmt.Sprintf("%-22s %s", f.Label+":", summary[f.Key])
		if i < (len(metrics.SummaryLayout)+1)/2 {
			left = append(left, line)
		} else {
			right = append(right, line)
		}
	}
	fields := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(width/2).Render(strings.Join(left, "\n")),
		strings.Join(right, "\n"),
	)

	sparkW := clamp(width-30, 10, 120)
	s := m.series
	charts := []string{
		chartLine("CPU %", usage(s.CPUUsage), 100, sparkW),
		chartLine("Memory %", usage(s.MemoryUsage), 100, sparkW),
		chartLine("Disk %", usage(s.DiskUsage), 100, sparkW),
		chartLine("Load 1m", load1(s.LoadAverage), 0, sparkW),
		chartLine("Swap used %", swapUsed(s.SwapMemory), 100, sparkW),
		chartLine("TCP conns", tcp(s.Network), 0, sparkW),
		chartLine("UDP conns", udp(s.Network), 0, sparkW),
	}
	if s.Len() == 0 {
		charts = []string{faintStyle.Render("waiting for samples…")}
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, "", fields, "", strings.Join(charts, "\n"))
}

// chartLine renders a labelled sparkline with the newest value
func chartLine(label string, vals []float64, max float64, width int) string {
	last := faintStyle.Render("n/a")
	if len(vals) > 0 {
		last = humanize.FtoaWithDigits(vals[len(vals)-1], 2)
	}
	return fmt.Sprintf("%-12s %-8s %s", label, last, Spark8(Scale(vals, max), width))
}

func usage(points []domain.UsagePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Usage
	}
	return out
}

func load1(points []domain.LoadPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Load1
	}
	return out
}

func swapUsed(points []domain.SwapPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Used
	}
	return out
}

func tcp(points []domain.NetworkPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.TCP)
	}
	return out
}

func udp(points []domain.NetworkPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.UDP)
	}
	return out
}
