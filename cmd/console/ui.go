package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

const (
	PlaceHolderText = "Type a message, or /help..."
	requestTimeout  = 30 * time.Second
)

// chatState is the chat on screen and the message whose tracker is shown.
type chatState struct {
	chat     *chat.Chat
	selected int
}

func loadChat(ctx context.Context, api *APIClient, id uuid.UUID) (*chatState, error) {
	c, err := api.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	return &chatState{chat: c, selected: latestTracked(c)}, nil
}

func newChat(ctx context.Context, api *APIClient, userName, persona string) (*chatState, error) {
	c, err := api.CreateChat(ctx, userName, persona)
	if err != nil {
		return nil, err
	}
	return &chatState{chat: c, selected: -1}, nil
}

// latestTracked is the index of the newest message carrying a tracker, or of
// the newest message when none does.
func latestTracked(c *chat.Chat) int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Tracker != nil {
			return i
		}
	}
	return len(c.Messages) - 1
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config          *ConsoleConfig
	api             *APIClient
	state           *chatState
	events          <-chan SSEEvent
	chatViewport    viewport.Model
	trackerViewport viewport.Model
	textarea        textarea.Model
	ready           bool
	width           int
	height          int
	err             error
	status          string

	trackerText string
	// pending holds the message indexes with generation in flight
	pending map[int]bool

	showQuitModal bool
	progressTick  int
}

type chatLoadedMsg struct {
	chat *chat.Chat
	err  error
}

type trackerRenderedMsg struct {
	index int
	text  string
	err   error
}

type appendedMsg struct {
	index     int
	requestID string
	err       error
}

type regenerateMsg struct {
	index     int
	requestID string
	err       error
}

type eventMsg SSEEvent

type streamClosedMsg struct{}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	trackerPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(0).
				PaddingLeft(0).
				PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

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
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

const helpText = `Commands:
• /as <name>: <text> - Add a character message
• /narrate <text>    - Add a system message (never tracked)
• /regen             - Regenerate the shown tracker
• /copy              - Copy the shown tracker
• /prev, /next       - Show another message's tracker
• Ctrl+P, Ctrl+N     - Same as /prev and /next
• Ctrl+C             - Quit
`

func NewConsoleUI(cfg *ConsoleConfig, api *APIClient, state *chatState, events <-chan SSEEvent) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 4000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	trackerVp := viewport.New(20, 20)
	trackerVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:          cfg,
		api:             api,
		state:           state,
		events:          events,
		textarea:        ta,
		chatViewport:    chatVp,
		trackerViewport: trackerVp,
		pending:         make(map[int]bool),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForEvent(), m.renderTracker(m.state.selected))
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		tvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.trackerViewport, tvCmd = m.trackerViewport.Update(msg)
		return m, tea.Batch(vpCmd, tvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth, trackerWidth := m.panelWidths()
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.trackerViewport.Width = trackerWidth - 2
		m.trackerViewport.Height = m.height - 5
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.writeChatContent()
		m.writeTrackerContent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlP:
			return m.selectMessage(m.state.selected - 1)
		case tea.KeyCtrlN:
			return m.selectMessage(m.state.selected + 1)
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case chatLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.state.chat = msg.chat
		m.writeChatContent()

	case trackerRenderedMsg:
		if msg.index != m.state.selected {
			break
		}
		m.trackerText = msg.text
		m.err = msg.err
		m.writeTrackerContent()

	case appendedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, m.reloadChat()
		}
		m.err = nil
		m.state.selected = msg.index
		cmds := []tea.Cmd{m.reloadChat(), m.renderTracker(msg.index)}
		if msg.requestID != "" {
			cmds = append(cmds, m.markPending(msg.index))
		}
		m.writeTrackerContent()
		return m, tea.Batch(cmds...)

	case regenerateMsg:
		if msg.err != nil {
			m.err = msg.err
			delete(m.pending, msg.index)
			m.writeTrackerContent()
			break
		}
		m.status = "Queued " + shortID(msg.requestID)

	case eventMsg:
		return m.handleEvent(SSEEvent(msg))

	case streamClosedMsg:
		m.status = "Event stream closed"
		m.writeTrackerContent()

	case progressTickMsg:
		if len(m.pending) > 0 {
			m.progressTick++
			m.writeTrackerContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.trackerViewport, tvCmd = m.trackerViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, tvCmd)
}

func (m ConsoleUI) handleEvent(ev SSEEvent) (tea.Model, tea.Cmd) {
	next := m.waitForEvent()
	switch ev.Type {
	case "request.queued", "request.processing":
		m.status = fmt.Sprintf("Message %d: %s", ev.MessageIndex, strings.TrimPrefix(ev.Type, "request."))
		tick := m.markPending(ev.MessageIndex)
		m.writeTrackerContent()
		return m, tea.Batch(next, tick)
	case "tracker.updated":
		delete(m.pending, ev.MessageIndex)
		m.status = fmt.Sprintf("Message %d: tracker updated", ev.MessageIndex)
		cmds := []tea.Cmd{next, m.reloadChat()}
		if ev.MessageIndex == m.state.selected {
			cmds = append(cmds, m.renderTracker(ev.MessageIndex))
		}
		m.writeTrackerContent()
		return m, tea.Batch(cmds...)
	case "request.failed":
		delete(m.pending, ev.MessageIndex)
		reason, _ := ev.Data["error"].(string)
		m.err = fmt.Errorf("message %d: %s", ev.MessageIndex, reason)
		m.writeTrackerContent()
	}
	return m, next
}

// markPending starts the progress animation when it is not already running.
func (m *ConsoleUI) markPending(index int) tea.Cmd {
	running := len(m.pending) > 0
	m.pending[index] = true
	if running {
		return nil
	}
	m.progressTick = 0
	return progressTick()
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	req, command, err := parseInput(input, m.config.UserName)
	if err != nil {
		m.err = err
		m.writeTrackerContent()
		return m, nil
	}

	switch command {
	case "":
		return m, m.appendMessage(req)
	case "help":
		m.chatViewport.SetContent(m.chatContent() + "\n" + titleStyle.Render("Help") + "\n" + helpText)
		m.chatViewport.GotoBottom()
	case "prev":
		return m.selectMessage(m.state.selected - 1)
	case "next":
		return m.selectMessage(m.state.selected + 1)
	case "copy":
		if m.trackerText == "" {
			m.status = "Nothing to copy"
			break
		}
		if err := clipboard.WriteAll(m.trackerText); err != nil {
			m.err = fmt.Errorf("copy failed: %w", err)
			break
		}
		m.status = "Tracker copied"
	case "regen":
		if m.state.selected < 0 {
			m.status = "No message selected"
			break
		}
		idx := m.state.selected
		tick := m.markPending(idx)
		m.writeTrackerContent()
		return m, tea.Batch(m.regenerate(idx), tick)
	}
	m.writeTrackerContent()
	return m, nil
}

var errUnknownCommand = errors.New("unknown command, try /help")

// parseInput turns a line of input into a message to append, or names a
// console command.
func parseInput(input, userName string) (chat.AppendRequest, string, error) {
	if !strings.HasPrefix(input, "/") {
		return chat.AppendRequest{Name: userName, Text: input, IsUser: true, Generate: true}, "", nil
	}

	word, rest, _ := strings.Cut(input[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(word) {
	case "as":
		name, text, ok := strings.Cut(rest, ":")
		name, text = strings.TrimSpace(name), strings.TrimSpace(text)
		if !ok || name == "" || text == "" {
			return chat.AppendRequest{}, "", errors.New("usage: /as <name>: <text>")
		}
		return chat.AppendRequest{Name: name, Text: text, Generate: true}, "", nil
	case "narrate":
		if rest == "" {
			return chat.AppendRequest{}, "", errors.New("usage: /narrate <text>")
		}
		return chat.AppendRequest{Name: "System", Text: rest, IsSystem: true}, "", nil
	case "help", "prev", "next", "copy", "regen":
		return chat.AppendRequest{}, strings.ToLower(word), nil
	}
	return chat.AppendRequest{}, "", errUnknownCommand
}

func (m ConsoleUI) selectMessage(index int) (tea.Model, tea.Cmd) {
	if index < 0 || index >= len(m.state.chat.Messages) {
		return m, nil
	}
	m.state.selected = index
	m.trackerText = ""
	m.err = nil
	m.writeChatContent()
	m.writeTrackerContent()
	return m, m.renderTracker(index)
}

func (m ConsoleUI) panelWidths() (int, int) {
	chatWidth := int(float64(m.width)*0.6) - 4
	return chatWidth, m.width - chatWidth - 6
}

// writeChatContent lays the chat out for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	m.chatViewport.SetContent(m.chatContent())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) chatContent() string {
	width := m.chatViewport.Width - 6
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("SCENE TRACKER") + "\n")
	content.WriteString(promptStyle.Render("Chat "+m.state.chat.ID.String()) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if len(m.state.chat.Messages) == 0 {
		content.WriteString("No messages yet. Type below to start the scene.\n")
	}
	for i, msg := range m.state.chat.Messages {
		content.WriteString(formatMessage(i, msg, i == m.state.selected, width) + "\n\n")
	}
	return content.String()
}

// formatMessage renders one chat line with its index and tracker marker.
func formatMessage(index int, msg chat.Message, selected bool, width int) string {
	marker := "  "
	if msg.Tracker != nil {
		marker = "◆ "
	}
	label := fmt.Sprintf("%s[%d] ", marker, index)
	if selected {
		label = selectedStyle.Render(label)
	} else {
		label = promptStyle.Render(label)
	}

	name := speakerStyle.Render(msg.Name + ":")
	switch {
	case msg.IsSystem:
		name = systemStyle.Render(msg.Name + ":")
	case msg.IsUser:
		name = userStyle.Render(msg.Name + ":")
	}
	wrap := width - len(msg.Name) - 8
	if wrap < 10 {
		wrap = 10
	}
	return label + name + " " + wordwrap.String(msg.Text, wrap)
}

func (m *ConsoleUI) writeTrackerContent() {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TRACKER") + "\n")
	if m.state.selected >= 0 {
		content.WriteString(promptStyle.Render(fmt.Sprintf("Message %d", m.state.selected)) + "\n\n")
	} else {
		content.WriteString("\n")
	}

	switch {
	case m.pending[m.state.selected]:
		content.WriteString(loadingStyle.Render("Generating...") + "\n")
		content.WriteString(m.renderProgressBar() + "\n\n")
	case m.trackerText != "":
		content.WriteString(wordwrap.String(m.trackerText, m.trackerViewport.Width) + "\n\n")
	default:
		content.WriteString(promptStyle.Render("No tracker") + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.status != "" {
		content.WriteString(promptStyle.Render(m.status) + "\n")
	}
	m.trackerViewport.SetContent(content.String())
}

func (m ConsoleUI) appendMessage(req chat.AppendRequest) tea.Cmd {
	id := m.state.chat.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := m.api.AppendMessage(ctx, id, req)
		if err != nil {
			return appendedMsg{err: err}
		}
		return appendedMsg{index: resp.MessageIndex, requestID: resp.RequestID}
	}
}

func (m ConsoleUI) regenerate(index int) tea.Cmd {
	id := m.state.chat.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := m.api.Regenerate(ctx, id, index)
		if err != nil {
			return regenerateMsg{index: index, err: err}
		}
		return regenerateMsg{index: index, requestID: resp.RequestID}
	}
}

func (m ConsoleUI) reloadChat() tea.Cmd {
	id := m.state.chat.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		c, err := m.api.GetChat(ctx, id)
		return chatLoadedMsg{chat: c, err: err}
	}
}

func (m ConsoleUI) renderTracker(index int) tea.Cmd {
	if index < 0 {
		return nil
	}
	id := m.state.chat.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		text, err := m.api.RenderTracker(ctx, id, index)
		if err != nil && strings.Contains(err.Error(), "status 404") {
			// Messages without a tracker render as empty
			err = nil
		}
		return trackerRenderedMsg{index: index, text: text, err: err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

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
				m.textarea.Focus()
				return m, textarea.Blink
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
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("The chat stays stored and can be reopened by id:\n")
	content.WriteString(m.state.chat.ID.String())
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth, trackerWidth := m.panelWidths()

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	trackerPanel := trackerPanelStyle.Width(trackerWidth).Height(m.height - 2).Render(
		m.trackerViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, trackerPanel)
}

// renderProgressBar creates an animated progress bar for pending trackers
func (m ConsoleUI) renderProgressBar() string {
	usable := m.trackerViewport.Width - 2
	if usable > 60 {
		usable = 60
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
