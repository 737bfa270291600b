package sim

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"fieldsweep/internal/config"
	"fieldsweep/internal/field"
	"fieldsweep/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// detectionMsg carries a detection log line and row data.
type detectionMsg struct {
	line string
	row  telemetry.DetectionRow
}

// eventMsg carries a mission event log line and row data.
type eventMsg struct {
	line string
	row  telemetry.MissionEventRow
}

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type telemetryMsg struct{ telemetry.TelemetryRow }

type setCommandsMsg struct{ cmds Commands }

// commandResultMsg reports the outcome of an operator command.
type commandResultMsg struct {
	text string
	err  error
}

const (
	maxLogLines         = 1000
	maxSectionHeightPct = 0.2
	mapWidth            = 41
	mapHeight           = 15
)

// TUIWriter renders mission telemetry using a bubbletea TUI and lets the
// operator pause, abort and deploy from the keyboard.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.Config) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.TelemetryRow) error {
	line := fmt.Sprintf("%s[%s]%s %sstate=%s%s %spos=(%.2f,%.2f,%.2f)%s %sref=(%.2f,%.2f,%.2f)%s %swp=%d/%d%s %serr=(%.3f,%.3f,%.3f)%s %srpm=%.0f/%.0f/%.0f/%.0f%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		stateColor(row.State), row.State, colorReset,
		colorGreen, row.X, row.Y, row.Z, colorReset,
		colorYellow, row.RefX, row.RefY, row.RefZ, colorReset,
		colorCyan, row.Waypoint+1, row.TotalWaypoints, colorReset,
		colorMagenta, row.ErrX, row.ErrY, row.ErrZ, colorReset,
		colorGray, row.Motors[0], row.Motors[1], row.Motors[2], row.Motors[3], colorReset,
	)
	w.program.Send(logMsg{line: line})
	w.program.Send(telemetryMsg{row})
	return nil
}

// WriteBatch outputs multiple telemetry rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteDetection implements DetectionWriter.
func (w *TUIWriter) WriteDetection(d telemetry.DetectionRow) error {
	line := fmt.Sprintf("%s[%s]%s %sDETECT%s %scrop=%.8s%s %slabel=%s%s %sx=%.2f y=%.2f%s %sconf=%.2f%s",
		colorGray, d.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, colorReset,
		colorWhite(), d.CropID, colorReset,
		colorMagenta, d.Label, colorReset,
		colorGreen, d.X, d.Y, colorReset,
		colorCyan, d.Confidence, colorReset)
	w.program.Send(detectionMsg{line: line, row: d})
	return nil
}

// WriteMissionEvent implements MissionEventWriter.
func (w *TUIWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	var line string
	if e.EventType == telemetry.EventTransition {
		line = fmt.Sprintf("%s[%s]%s %s -> %s%s%s %s%s%s",
			colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
			e.FromState, stateColor(e.ToState), e.ToState, colorReset,
			colorGray, e.Details, colorReset)
	} else {
		line = fmt.Sprintf("%s[%s]%s %sCOMMAND%s %s",
			colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
			colorBlue, colorReset, e.Details)
	}
	w.program.Send(eventMsg{line: line, row: e})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetCommands registers the operator commands bound to keys.
func (w *TUIWriter) SetCommands(c Commands) {
	w.program.Send(setCommandsMsg{cmds: c})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg          *config.Config
	table        table.Model
	vp           viewport.Model
	detVP        viewport.Model
	evVP         viewport.Model
	logs         []string
	detLogs      []string
	evLogs       []string
	admin        bool
	wrap         bool
	autoscroll   bool
	header       string
	headerHeight int
	height       int
	cmds         Commands
	deployInput  textinput.Model
	deployDialog bool
	help         bool
	summary      bool
	showMap      bool
	flash        string
	last         telemetry.TelemetryRow
	haveRow      bool
	detections   []telemetry.DetectionRow
	labelCounts  map[string]int
}

func newTUIModel(cfg *config.Config) tuiModel {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Farm", Width: 20},
		{Title: "Location", Width: 14},
		{Title: "Bounds (m)", Width: 24},
	}
	var rows []table.Row
	for _, f := range cfg.Farms {
		b := f.Boundaries
		rows = append(rows, table.Row{
			strconv.Itoa(f.ID), f.Name, f.Location,
			fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", b.MinX, b.MinY, b.MaxX, b.MaxY),
		})
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		cfg:         cfg,
		table:       t,
		vp:          viewport.New(0, 0),
		detVP:       viewport.New(0, 0),
		evVP:        viewport.New(0, 0),
		autoscroll:  true,
		labelCounts: make(map[string]int),
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.detVP.Width = msg.Width
		m.evVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshDetections()
		m.refreshEvents()
	case tea.KeyMsg:
		if m.deployDialog {
			switch msg.Type {
			case tea.KeyEnter:
				m.deployDialog = false
				m.updateViewportHeight()
				id, err := strconv.Atoi(strings.TrimSpace(m.deployInput.Value()))
				if err != nil {
					m.flash = fmt.Sprintf("invalid farm id %q", m.deployInput.Value())
					return m, nil
				}
				return m, m.deployCmd(id)
			case tea.KeyEsc:
				m.deployDialog = false
				m.updateViewportHeight()
			default:
				var cmd tea.Cmd
				m.deployInput, cmd = m.deployInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.updateViewportHeight()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.detVP.GotoBottom()
				m.evVP.GotoBottom()
			}
			return m, nil
		case "p", " ":
			return m, m.pauseCmd()
		case "a":
			return m, m.abortCmd()
		case "d":
			m.deployInput = textinput.New()
			m.deployInput.Placeholder = "farm id"
			if len(m.cfg.Farms) > 0 {
				m.deployInput.SetValue(strconv.Itoa(m.cfg.Farms[0].ID))
				m.deployInput.CursorEnd()
			}
			m.deployInput.Focus()
			m.deployDialog = true
			m.updateViewportHeight()
			return m, nil
		case "m":
			m.showMap = !m.showMap
			m.updateViewportHeight()
			return m, nil
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
			return m, nil
		case "h", "?":
			m.help = !m.help
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = appendCapped(m.logs, msg.line)
		m.refreshViewport()
	case detectionMsg:
		m.detLogs = appendCapped(m.detLogs, msg.line)
		if msg.row.MissionID != m.last.MissionID {
			m.detections = nil
		}
		m.detections = append(m.detections, msg.row)
		m.labelCounts[msg.row.Label]++
		m.updateViewportHeight()
		m.refreshDetections()
	case eventMsg:
		m.evLogs = appendCapped(m.evLogs, msg.line)
		m.updateViewportHeight()
		m.refreshEvents()
	case telemetryMsg:
		if msg.MissionID != m.last.MissionID {
			m.detections = nil
		}
		m.last = msg.TelemetryRow
		m.haveRow = true
	case adminMsg:
		m.admin = msg.active
	case setCommandsMsg:
		m.cmds = msg.cmds
	case commandResultMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s failed: %v", msg.text, msg.err)
		} else {
			m.flash = msg.text
		}
	}
	return m, nil
}

func appendCapped(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return lines
}

func (m tuiModel) pauseCmd() tea.Cmd {
	fn := m.cmds.TogglePause
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		paused, err := fn()
		text := "resumed"
		if paused {
			text = "paused"
		}
		if err != nil {
			text = "pause"
		}
		return commandResultMsg{text: text, err: err}
	}
}

func (m tuiModel) abortCmd() tea.Cmd {
	fn := m.cmds.Abort
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		if err := fn(); err != nil {
			return commandResultMsg{text: "abort", err: err}
		}
		return commandResultMsg{text: "returning home"}
	}
}

func (m tuiModel) deployCmd(farmID int) tea.Cmd {
	fn := m.cmds.Deploy
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		if err := fn(farmID); err != nil {
			return commandResultMsg{text: fmt.Sprintf("deploy farm %d", farmID), err: err}
		}
		return commandResultMsg{text: fmt.Sprintf("deployed to farm %d", farmID)}
	}
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())
	maxLines := m.maxSectionLines()

	m.detVP.Height = clampLines(len(m.detLogs), maxLines)
	m.evVP.Height = clampLines(len(m.evLogs), maxLines)

	dialogHeight := 0
	if m.deployDialog {
		dialogHeight = 2
	}
	h := m.height - m.headerHeight - bottomHeight - (1 + m.detVP.Height) - (1 + m.evVP.Height) - dialogHeight - 5
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.detVP.GotoBottom()
		m.evVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func clampLines(n, limit int) int {
	if n == 0 {
		n = 1
	}
	if n > limit {
		n = limit
	}
	return n
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshDetections() {
	content := "none"
	if len(m.detLogs) > 0 {
		content = strings.Join(m.detLogs, "\n")
	}
	m.detVP.SetContent(content)
	if m.autoscroll {
		m.detVP.GotoBottom()
	}
}

func (m *tuiModel) refreshEvents() {
	content := "none"
	if len(m.evLogs) > 0 {
		content = strings.Join(m.evLogs, "\n")
	}
	m.evVP.SetContent(content)
	if m.autoscroll {
		m.evVP.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	body := m.vp.View()
	if m.showMap {
		body = m.renderMap()
	}
	sections := []string{
		m.header,
		divider,
		body,
		divider,
		"Detections:",
		m.detVP.View(),
		divider,
		"Mission Events:",
		m.evVP.View(),
	}
	if m.deployDialog {
		sections = append(sections, divider, "Deploy to farm: "+m.deployInput.View())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("fieldsweep  airframe=%s  hover=%.2fm  step=%.2fm",
		m.cfg.Airframe, m.cfg.Mission.HoverAltitude, m.cfg.Mission.SweepStep))
	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View())
}

// farmFor returns the configured farm a telemetry row belongs to.
func (m tuiModel) farmFor(ref string) (config.Farm, bool) {
	for _, f := range m.cfg.Farms {
		if f.Ref() == ref {
			return f, true
		}
	}
	return config.Farm{}, false
}

// renderMap draws the farm bounds, the detections and the vehicle on a
// fixed character grid with +y pointing up.
func (m tuiModel) renderMap() string {
	if !m.haveRow {
		return "No position data"
	}
	farm, ok := m.farmFor(m.last.Farm)
	if !ok {
		return fmt.Sprintf("Unknown farm %q", m.last.Farm)
	}
	b := farm.Boundaries
	spanX, spanY := b.MaxX-b.MinX, b.MaxY-b.MinY
	cell := func(x, y float64) (int, int, bool) {
		col := int((x - b.MinX) / spanX * float64(mapWidth-1))
		row := int((b.MaxY - y) / spanY * float64(mapHeight-1))
		return col, row, col >= 0 && col < mapWidth && row >= 0 && row < mapHeight
	}
	grid := make([][]string, mapHeight)
	for i := range grid {
		grid[i] = make([]string, mapWidth)
		for j := range grid[i] {
			grid[i][j] = "."
		}
	}
	for _, d := range m.detections {
		if c, r, ok := cell(d.X, d.Y); ok {
			grid[r][c] = colorRed + "x" + colorReset
		}
	}
	if c, r, ok := cell(m.last.RefX, m.last.RefY); ok {
		grid[r][c] = colorYellow + "+" + colorReset
	}
	if c, r, ok := cell(m.last.X, m.last.Y); ok {
		grid[r][c] = stateColor(m.last.State) + "D" + colorReset
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%.1f,%.1f)-(%.1f,%.1f)  D=drone +=reference x=detection\n", farm.Name, b.MinX, b.MinY, b.MaxX, b.MaxY)
	border := "+" + strings.Repeat("-", mapWidth) + "+"
	sb.WriteString(border + "\n")
	for _, row := range grid {
		sb.WriteString("|" + strings.Join(row, "") + "|\n")
	}
	sb.WriteString(border)
	return sb.String()
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderSummary() string {
	var parts []string
	for _, l := range field.Labels {
		parts = append(parts, fmt.Sprintf("%s=%d", l, m.labelCounts[string(l)]))
	}
	return fmt.Sprintf("%sSUMMARY%s %sdetections=%d%s [%s] %smission_detections=%d%s",
		colorBlue, colorReset,
		colorMagenta, len(m.detLogs), colorReset,
		strings.Join(parts, " "),
		colorCyan, len(m.detections), colorReset)
}

func (m tuiModel) renderBottom() string {
	state := "idle"
	progress := "-"
	if m.haveRow {
		state = m.last.State
		progress = fmt.Sprintf("%d/%d", m.last.Waypoint+1, m.last.TotalWaypoints)
	}
	status := fmt.Sprintf("%sMISSION%s %s%s%s wp=%s", colorBlue, colorReset, stateColor(state), state, colorReset, progress)
	line := fmt.Sprintf("%s | Admin UI %s | Wrap %s | Scroll %s | Map %s | Summary %s | p pause  a abort  d deploy  ? help",
		status, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.showMap), indicator(m.summary))
	if m.flash != "" {
		line = fmt.Sprintf("%s\n%s%s%s", line, colorYellow, m.flash, colorReset)
	}
	if m.summary {
		return fmt.Sprintf("%s\n%s", m.renderSummary(), line)
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q     quit",
		" p     pause / resume the mission",
		" a     abort and return home",
		" d     deploy to a farm id",
		" m     toggle field map",
		" w     toggle wrap for telemetry lines",
		" s     toggle auto-scroll",
		" t     toggle summary footer",
		" h/?   toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
