package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-s2s/core"
	"github.com/koscakluka/ema-s2s/core/correlator"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/muesli/reflow/wordwrap"
)

const (
	eventsPaneHeight = 8
	chromeHeight     = 4
	updateBuffer     = 256
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	phaseStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	userStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	assistantStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	interruptedStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
	paneTitleStyle   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("245"))
	eventStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type (
	phaseMsg        orchestration.Phase
	textMsg         orchestration.TextContent
	interruptionMsg string
	playbackMsg     playback.State
	errorMsg        struct{ err error }
	eventsMsg       struct{}
	toggledMsg      struct{ err error }
)

type model struct {
	toggle      func(ctx context.Context) error
	groups      func() []correlator.Group
	resetGroups func()
	updates     <-chan tea.Msg

	spinner    spinner.Model
	transcript viewport.Model
	events     viewport.Model
	width      int

	phase         orchestration.Phase
	playback      playback.State
	textOrder     []string
	texts         map[string]orchestration.TextContent
	interruptions int
	toggling      bool
	lastErr       error
}

func newModel(toggle func(ctx context.Context) error, c *correlator.Correlator, updates <-chan tea.Msg) model {
	return model{
		toggle:      toggle,
		groups:      c.Groups,
		resetGroups: c.Reset,
		updates:     updates,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(phaseStyle)),
		transcript:  viewport.New(80, 12),
		events:      viewport.New(80, eventsPaneHeight),
		width:       80,
		phase:       orchestration.PhaseIdle,
		playback:    playback.StateIdle,
		texts:       map[string]orchestration.TextContent{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.transcript.Width = msg.Width
		m.transcript.Height = max(msg.Height-eventsPaneHeight-chromeHeight, 1)
		m.events.Width = msg.Width
		m.renderTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "enter":
			if m.toggling {
				return m, nil
			}
			m.toggling = true
			toggle := m.toggle
			return m, func() tea.Msg {
				return toggledMsg{err: toggle(context.Background())}
			}
		case "c":
			m.resetGroups()
			m.renderEvents()
			return m, nil
		}
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd

	case toggledMsg:
		m.toggling = false
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, nil

	case phaseMsg:
		m.phase = orchestration.Phase(msg)
		if m.phase == orchestration.PhaseOpening {
			m.lastErr = nil
		}
		return m, waitForUpdate(m.updates)

	case textMsg:
		text := orchestration.TextContent(msg)
		if _, ok := m.texts[text.ID]; !ok {
			m.textOrder = append(m.textOrder, text.ID)
		}
		m.texts[text.ID] = text
		m.renderTranscript()
		return m, waitForUpdate(m.updates)

	case interruptionMsg:
		m.interruptions++
		return m, waitForUpdate(m.updates)

	case playbackMsg:
		m.playback = playback.State(msg)
		return m, waitForUpdate(m.updates)

	case errorMsg:
		m.lastErr = msg.err
		return m, waitForUpdate(m.updates)

	case eventsMsg:
		m.renderEvents()
		return m, waitForUpdate(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) renderTranscript() {
	width := max(m.width-2, 10)

	var b strings.Builder
	for _, id := range m.textOrder {
		text := m.texts[id]
		if text.Content == "" || text.Role == events.RoleSystem {
			continue
		}

		label := assistantStyle.Render("assistant")
		if text.Role == events.RoleUser {
			label = userStyle.Render("you")
		}
		b.WriteString(label)
		if text.Interrupted {
			b.WriteString(" " + interruptedStyle.Render("(interrupted)"))
		}
		b.WriteString("\n")
		b.WriteString(wordwrap.String(text.Content, width))
		b.WriteString("\n\n")
	}

	m.transcript.SetContent(b.String())
	m.transcript.GotoBottom()
}

func (m *model) renderEvents() {
	var b strings.Builder
	for _, group := range m.groups() {
		arrow := "←"
		if group.Direction == events.DirectionOutbound {
			arrow = "→"
		}
		line := fmt.Sprintf("%s %s ×%d", arrow, group.Key, group.Count())
		if group.Interrupted {
			line += " interrupted"
		}
		b.WriteString(eventStyle.Render(line))
		b.WriteString("\n")
	}
	m.events.SetContent(b.String())
}

func (m model) View() string {
	status := phaseStyle.Render(string(m.phase))
	if m.phase == orchestration.PhaseOpening || m.phase == orchestration.PhaseClosing {
		status = m.spinner.View() + " " + status
	}
	header := fmt.Sprintf("%s  %s  playback: %s  interruptions: %d",
		titleStyle.Render("ema-s2s"), status, m.playback, m.interruptions)

	action := "start"
	if m.phase == orchestration.PhaseActive {
		action = "end"
	}
	footer := helpStyle.Render(fmt.Sprintf("space: %s session • c: clear events • q: quit", action))
	if m.lastErr != nil {
		footer = errorStyle.Render(m.lastErr.Error()) + "\n" + footer
	}

	return strings.Join([]string{
		header,
		m.transcript.View(),
		paneTitleStyle.Render("events"),
		m.events.View(),
		footer,
	}, "\n")
}

// runTUI shows the conversation until the user quits. An active session is
// ended on the way out.
func runTUI(ctx context.Context, o *orchestration.Orchestrator) error {
	uiCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan tea.Msg, updateBuffer)
	send := func(msg tea.Msg) {
		select {
		case updates <- msg:
		case <-uiCtx.Done():
		}
	}

	c := correlator.New(correlator.WithUpdateCallback(func() {
		select {
		case updates <- eventsMsg{}:
		default:
		}
	}))

	o.Orchestrate(context.WithoutCancel(ctx),
		orchestration.WithPhaseCallback(func(phase orchestration.Phase) { send(phaseMsg(phase)) }),
		orchestration.WithEventCallback(c.Observe),
		orchestration.WithTextCallback(func(text orchestration.TextContent) { send(textMsg(text)) }),
		orchestration.WithInterruptionCallback(func(contentID string) { send(interruptionMsg(contentID)) }),
		orchestration.WithPlaybackCallback(func(state playback.State) { send(playbackMsg(state)) }),
		orchestration.WithErrorCallback(func(err error) { send(errorMsg{err: err}) }),
	)

	program := tea.NewProgram(newModel(o.Toggle, c, updates), tea.WithAltScreen(), tea.WithContext(uiCtx))
	_, err := program.Run()
	cancel()

	endCtx, endCancel := context.WithTimeout(context.Background(), endTimeout)
	defer endCancel()
	if o.Phase() == orchestration.PhaseActive {
		_ = o.End(endCtx)
	}

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
