package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/leonelquinteros/gotext"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "key keypad_two 1, enter keypad_two, /help ..."

// maxLogLines bounds the transcript kept in memory
const maxLogLines = 500

// ConsoleUI is the BubbleTea model that runs the room playground.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config    *ConsoleConfig
	logger    *slog.Logger
	session   *room.Session
	recorder  *puzzle.Recorder
	roomFile  string
	logLines  []string
	logVp     viewport.Model
	stateVp   viewport.Model
	input     textinput.Model
	ready     bool
	width     int
	height    int
	err       error
	lastTick  time.Time
	completed bool

	// Room selection state
	showRoomModal bool
	rooms         []string
	selectedRoom  int

	// Quit confirmation state
	showQuitModal bool
}

type roomLoadedMsg struct {
	file     string
	session  *room.Session
	recorder *puzzle.Recorder
	err      error
}

type tickMsg time.Time

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	statePanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	acceptedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	rejectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	signalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	solvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, rooms []string, logger *slog.Logger) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = gotext.Get(PlaceHolderText)
	ti.Prompt = promptStyle.Render(":: ")
	ti.CharLimit = 200
	ti.Width = 50

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	stateVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		logger:        logger,
		rooms:         rooms,
		input:         ti,
		logVp:         logVp,
		stateVp:       stateVp,
		showRoomModal: len(rooms) > 1,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	if !m.showRoomModal && len(m.rooms) == 1 {
		return m.loadRoom(m.rooms[0])
	}
	return nil
}

func (m ConsoleUI) loadRoom(file string) tea.Cmd {
	return func() tea.Msg {
		def, err := room.Load(file)
		if err != nil {
			return roomLoadedMsg{file: file, err: err}
		}
		if err := def.Validate(); err != nil {
			return roomLoadedMsg{file: file, err: err}
		}
		rec := puzzle.NewRecorder()
		s, err := room.NewSession(def, rec, m.logger)
		if err != nil {
			return roomLoadedMsg{file: file, err: err}
		}
		return roomLoadedMsg{file: file, session: s, recorder: rec}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showRoomModal || m.session == nil {
		return m.updateRoomModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logVp, vpCmd = m.logVp.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refresh()

	case tickMsg:
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			if fired := m.session.Tick(now.Sub(m.lastTick)); fired > 0 || len(m.recorder.Signals()) > 0 {
				m.drainSignals()
				m.refresh()
			}
		}
		m.lastTick = now
		return m, tick(m.config.TickInterval)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if strings.HasPrefix(line, "/") {
				return m.handleCommand(line)
			}
			m.run(line)
			m.refresh()
			return m, nil
		}
	}

	m.input, tiCmd = m.input.Update(msg)
	m.logVp, vpCmd = m.logVp.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// run parses one line and applies its events in order, stopping at the
// first event the room refuses.
func (m *ConsoleUI) run(line string) {
	m.appendLog(promptStyle.Render("> " + line))

	events, err := parseCommand(line)
	if err != nil {
		m.appendLog(errorStyle.Render(err.Error()))
		return
	}
	for _, ev := range events {
		out, err := m.session.Handle(ev)
		if err != nil {
			m.drainSignals()
			m.appendLog(errorStyle.Render(gotext.Get("Refused") + ": " + err.Error()))
			return
		}
		m.appendOutcome(out)
		m.drainSignals()
	}
	if !m.completed && m.session.Complete() {
		m.completed = true
		m.appendLog(solvedStyle.Render(gotext.Get("Room complete!")))
	}
}

func (m *ConsoleUI) appendOutcome(out room.Outcome) {
	label := string(out.Type)
	if out.Target != "" {
		label += " " + out.Target
	}
	switch {
	case out.Accepted && out.Result != "":
		m.appendLog(acceptedStyle.Render(label + ": " + out.Result))
	case out.Accepted:
		m.appendLog(acceptedStyle.Render(label + ": ok"))
	default:
		m.appendLog(rejectedStyle.Render(label + ": " + out.Rejection))
	}
	for _, id := range out.NewlySolved {
		m.appendLog(solvedStyle.Render(fmt.Sprintf(gotext.Get("Solved %s"), titleID(id))))
	}
}

func (m *ConsoleUI) drainSignals() {
	for _, s := range m.recorder.Drain() {
		m.appendLog(signalStyle.Render("  " + describeSignal(s)))
	}
}

func (m *ConsoleUI) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

func (m *ConsoleUI) layout() {
	logWidth := int(float64(m.width)*0.7) - 4
	stateWidth := m.width - logWidth - 6

	m.logVp.Width = logWidth - 2
	m.logVp.Height = m.height - 7
	m.stateVp.Width = stateWidth - 2
	m.stateVp.Height = m.height - 4
	m.input.Width = logWidth - 8
}

// refresh rebuilds both panels for the current width
func (m *ConsoleUI) refresh() {
	width := m.logVp.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.session.Definition().Name)) + "\n\n")
	if d := m.session.Definition().Description; d != "" {
		content.WriteString(wordwrap.String(d, width) + "\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")
	for _, line := range m.logLines {
		content.WriteString(wordwrap.String(line, width) + "\n")
	}
	m.logVp.SetContent(content.String())
	m.logVp.GotoBottom()

	m.stateVp.SetContent(writeState(m.session, m.roomFile))
}

func writeState(s *room.Session, roomFile string) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(gotext.Get("ROOM STATE")) + "\n\n")

	content.WriteString(gotext.Get("Room file") + ":\n")
	content.WriteString(filepath.Base(roomFile) + "\n\n")

	solved, total := s.Progress()
	content.WriteString(fmt.Sprintf("%s: %d/%d\n", gotext.Get("Solved"), solved, total))
	content.WriteString(fmt.Sprintf("%s: %.1fs\n", gotext.Get("Clock"), s.Now().Seconds()))
	if s.Paused() {
		content.WriteString(rejectedStyle.Render(gotext.Get("PAUSED")) + "\n")
	}
	if v := s.Vitals(); v != nil {
		content.WriteString(fmt.Sprintf("%s: %.0f/%.0f\n", gotext.Get("Health"), v.Current(), v.Max()))
	}
	content.WriteString("\n")

	def := s.Definition()
	for _, cfg := range def.Keypads {
		k := s.Keypad(cfg.ID)
		content.WriteString(mark(k.Solved()) + titleID(cfg.ID) + "\n")
		content.WriteString(fmt.Sprintf("    [%-*s]\n", cfg.MaxLength, k.Display()))
	}
	for _, cfg := range def.Panels {
		p := s.Panel(cfg.ID)
		content.WriteString(mark(p.Solved()) + titleID(cfg.ID) + "\n")
		content.WriteString(fmt.Sprintf("    %d/%d %s\n", p.Tracker().FilledCount(), len(cfg.Slots), gotext.Get("placed")))
	}
	for _, cfg := range def.Switches {
		content.WriteString(mark(s.Switch(cfg.ID).Activated()) + titleID(cfg.ID) + "\n")
	}

	content.WriteString("\n")
	content.WriteString(gotext.Get("Commands") + ":\n")
	content.WriteString("• /help\n")
	content.WriteString("• /copy\n")
	content.WriteString("• Ctrl+C\n")
	return content.String()
}

func mark(done bool) string {
	if done {
		return solvedStyle.Render("✔ ")
	}
	return "· "
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		m.appendLog(titleStyle.Render(gotext.Get("Help") + ":"))
		for _, line := range strings.Split(strings.TrimSpace(helpText), "\n") {
			m.appendLog(line)
		}

	case "/copy":
		data, err := json.MarshalIndent(m.session.Snapshot(), "", "  ")
		if err == nil {
			err = clipboard.WriteAll(string(data))
		}
		if err != nil {
			m.appendLog(errorStyle.Render(gotext.Get("Copy failed") + ": " + err.Error()))
		} else {
			m.appendLog(acceptedStyle.Render(gotext.Get("Snapshot copied to clipboard")))
		}

	case "/quit":
		m.showQuitModal = true
		return m, nil

	default:
		m.appendLog(errorStyle.Render(fmt.Sprintf(gotext.Get("Unknown command %s"), cmd)))
	}

	m.refresh()
	return m, nil
}

const helpText = `
• key <keypad> <label>          press one key
• type <keypad> <code>          press several keys
• del <keypad>, enter <keypad>  delete, confirm
• select <keypad> <from> <to>   select text
• place <panel> <slot> <tag>    place a piece
• press <switch>, grab <switch> use a switch
• in <zone> [tag], out <zone>   enter, leave a zone
• pause, damage <n>, reset [id]
• /copy                         copy the snapshot
`

func (m ConsoleUI) updateRoomModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case roomLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.session = msg.session
		m.recorder = msg.recorder
		m.roomFile = msg.file
		m.showRoomModal = false
		m.input.Focus()
		m.drainSignals()
		if m.width > 0 && m.height > 0 {
			m.layout()
			m.ready = true
		}
		m.refresh()
		return m, tea.Batch(textinput.Blink, tick(m.config.TickInterval))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedRoom > 0 {
				m.selectedRoom--
			}
		case tea.KeyDown:
			if m.selectedRoom < len(m.rooms)-1 {
				m.selectedRoom++
			}
		case tea.KeyEnter:
			if len(m.rooms) > 0 {
				return m, m.loadRoom(m.rooms[m.selectedRoom])
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Time stands still while the modal is open.
		m.lastTick = time.Time{}
		return m, tick(m.config.TickInterval)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.input.Focus()
				return m, textinput.Blink
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render(gotext.Get("Leave the room?")))
	content.WriteString("\n\n")
	content.WriteString(gotext.Get("Progress in this room will be lost."))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render(gotext.Get("Press Y to quit, N to continue, or Ctrl+C to force quit")))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderRoomModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	if m.err != nil {
		content.WriteString(modalTitleStyle.Render(gotext.Get("Error")))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(wordwrap.String(errorText(m.err), 54)))
		content.WriteString("\n\n")
	}

	content.WriteString(modalTitleStyle.Render(gotext.Get("Select a Room")))
	content.WriteString("\n\n")
	for i, file := range m.rooms {
		name := filepath.Base(file)
		if i == m.selectedRoom {
			content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
		} else {
			content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")
	content.WriteString(promptStyle.Render(gotext.Get("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit")))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func errorText(err error) string {
	var verr *room.ValidationError
	if errors.As(err, &verr) {
		return strings.Join(verr.Problems, "\n")
	}
	return err.Error()
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showRoomModal || m.session == nil {
		return m.renderRoomModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	stateWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logVp.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.input.View(),
		),
	)

	statePanel := statePanelStyle.Width(stateWidth).Height(m.height - 2).Render(
		m.stateVp.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, statePanel)
}
