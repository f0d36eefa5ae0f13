// Package tui is the full-screen terminal front end built on Bubble Tea. It
// renders conversation snapshots and owns the consent dialog.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"photoagent/internal/chat"
	"photoagent/internal/conversation"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
)

// PanelID 面板标识
// PanelID identifies a panel
type PanelID int

const (
	PanelChat PanelID = iota
	PanelSelection
	PanelLogs
)

// Session is the part of the session controller the TUI drives.
type Session interface {
	SubmitUserInputAsync(ctx context.Context, text string) bool
	Suggestion(n int) (chat.SuggestedAction, bool)
	State() *conversation.Store
}

// ConsentQueue exposes the outstanding consent request. permission.QueueBroker
// satisfies it.
type ConsentQueue interface {
	Outstanding() (permission.ConsentRequest, bool)
	Decide(id string, granted bool) error
}

// --- Tea Messages ---

// SnapshotMsg 会话状态更新
// SnapshotMsg carries the latest conversation state.
type SnapshotMsg struct{ Snapshot conversation.Snapshot }

// subscriptionClosedMsg is sent once the snapshot channel closes.
type subscriptionClosedMsg struct{}

// Info is static text for the sidebar.
type Info struct {
	Library string
	Planner string
	Session string
}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	ctx     context.Context
	session Session
	consent ConsentQueue
	updates <-chan conversation.Snapshot

	// 布局 / Layout
	width  int
	height int

	// 面板 / Panels
	activePanel   PanelID
	chatView      viewport.Model
	selectionView viewport.Model
	logsView      viewport.Model

	// 输入 / Input
	input textarea.Model

	// 状态 / State
	snap       conversation.Snapshot
	pending    *permission.ConsentRequest
	logLines   []string
	lastError  string
	info       Info

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// NewApp 创建 TUI 应用；updates 为 nil 时不订阅
// NewApp creates the TUI model. A nil updates channel disables subscription,
// which tests use to feed SnapshotMsg directly.
func NewApp(ctx context.Context, sess Session, consent ConsentQueue, updates <-chan conversation.Snapshot, info Info) App {
	ta := textarea.New()
	ta.Placeholder = i18n.T("input.placeholder")
	ta.CharLimit = 4096
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	return App{
		ctx:         ctx,
		session:     sess,
		consent:     consent,
		updates:     updates,
		activePanel: PanelChat,
		input:       ta,
		info:        info,
		theme:       DarkTheme(),
		keys:        DefaultKeyMap(),
		locale:      i18n.Global(),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.waitForSnapshot())
}

func (a App) waitForSnapshot() tea.Cmd {
	if a.updates == nil {
		return nil
	}
	ch := a.updates
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.pending != nil {
			return a.updateConsent(msg)
		}
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.SwitchPanel):
			a.activePanel = (a.activePanel + 1) % 3
			return a, nil
		case key.Matches(msg, a.keys.Submit):
			text := strings.TrimSpace(a.input.Value())
			a.input.Reset()
			a.handleInput(text)
			return a, nil
		case key.Matches(msg, a.keys.Suggest):
			a.pickSuggestion(strconv.Itoa(suggestionIndex(msg.String())))
			return a, nil
		case key.Matches(msg, a.keys.ScrollUp):
			a.chatView.ScrollUp(1)
			return a, nil
		case key.Matches(msg, a.keys.ScrollDown):
			a.chatView.ScrollDown(1)
			return a, nil
		case key.Matches(msg, a.keys.PageUp):
			a.chatView.HalfPageUp()
			return a, nil
		case key.Matches(msg, a.keys.PageDown):
			a.chatView.HalfPageDown()
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case SnapshotMsg:
		a.applySnapshot(msg.Snapshot)
		return a, a.waitForSnapshot()

	case subscriptionClosedMsg:
		return a, nil
	}

	// 更新输入区 / Update input area
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a App) updateConsent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var granted bool
	switch {
	case key.Matches(msg, a.keys.Allow):
		granted = true
	case key.Matches(msg, a.keys.Deny):
		granted = false
	case msg.String() == "ctrl+c":
		return a, tea.Quit
	default:
		return a, nil
	}
	id := a.pending.ID
	a.pending = nil
	if err := a.consent.Decide(id, granted); err != nil {
		a.lastError = err.Error()
		a.appendLog("[consent] " + err.Error())
		return a, nil
	}
	a.appendLog(fmt.Sprintf("[consent] %s granted=%t", id, granted))
	return a, nil
}

// handleInput submits text or runs a slash command.
func (a *App) handleInput(text string) {
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		a.command(text)
		return
	}
	a.submit(text)
}

func (a *App) submit(text string) {
	if !a.session.SubmitUserInputAsync(a.ctx, text) {
		a.lastError = a.locale.T("status.busy")
		return
	}
	a.lastError = ""
}

func (a *App) command(input string) {
	parts := strings.Fields(input)
	state := a.session.State()
	switch parts[0] {
	case "/select":
		state.SetSelection(parts[1:])
		a.appendLog(a.locale.T("cmd.selected", len(state.Selection())))
	case "/clear":
		state.SetSelection(nil)
		a.appendLog(a.locale.T("cmd.selected", 0))
	case "/suggest":
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}
		a.pickSuggestion(arg)
	default:
		a.lastError = a.locale.T("cmd.unknown", parts[0])
	}
}

// pickSuggestion submits the prompt behind chip arg, numbered from 1.
func (a *App) pickSuggestion(arg string) {
	n, err := strconv.Atoi(arg)
	sugg, ok := a.session.Suggestion(n)
	if err != nil || !ok {
		a.lastError = a.locale.T("cmd.no_suggest", arg)
		return
	}
	a.submit(sugg.Prompt)
}

func (a *App) applySnapshot(snap conversation.Snapshot) {
	if snap.Status != a.snap.Status {
		a.appendLog(fmt.Sprintf("[status] %s → %s", a.snap.Status, snap.Status))
	}
	a.snap = snap
	a.pending = nil
	if snap.Status == conversation.StatusRequiresPermission && a.consent != nil {
		if req, ok := a.consent.Outstanding(); ok {
			a.pending = &req
		}
	}
	a.refreshChat()
	a.refreshSelection()
}

// --- 内部方法 / Internal methods ---

func (a *App) relayout() {
	mainWidth := a.mainWidth()
	panelHeight := a.height - 8

	if panelHeight < 3 {
		panelHeight = 3
	}

	a.chatView = viewport.New(mainWidth, panelHeight)
	a.selectionView = viewport.New(mainWidth, panelHeight)
	a.logsView = viewport.New(mainWidth, panelHeight)
	a.logsView.SetContent(strings.Join(a.logLines, "\n"))
	a.refreshChat()
	a.refreshSelection()

	a.input.SetWidth(mainWidth - 4)
}

func (a App) sidebarWidth() int {
	if a.width < 80 {
		return 0
	}
	w := a.width * 25 / 100
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (a App) mainWidth() int {
	sw := a.sidebarWidth()
	if sw == 0 {
		return a.width
	}
	return a.width - sw - 1
}

func (a *App) refreshChat() {
	width := a.mainWidth() - 2
	parts := make([]string, 0, len(a.snap.Messages))
	for _, m := range a.snap.Messages {
		parts = append(parts, RenderMessage(m, width, a.theme))
	}
	a.chatView.SetContent(strings.Join(parts, "\n\n"))
	a.chatView.GotoBottom()
}

func (a *App) refreshSelection() {
	var b strings.Builder
	section := func(title string, uris []string) {
		b.WriteString(a.theme.TitleStyle.Render(fmt.Sprintf("%s (%d)", title, len(uris))))
		b.WriteString("\n")
		for _, uri := range uris {
			b.WriteString("  " + uri + "\n")
		}
		b.WriteString("\n")
	}
	section(a.locale.T("panel.selection"), a.snap.Selection)
	section("last search", a.snap.LastSearch)
	section("last selected", a.snap.LastManual)
	a.selectionView.SetContent(b.String())
}

func (a *App) appendLog(text string) {
	a.logLines = append(a.logLines, text)
	a.logsView.SetContent(strings.Join(a.logLines, "\n"))
	a.logsView.GotoBottom()
}

// --- 渲染方法 / Render methods ---

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	sidebarWidth := a.sidebarWidth()
	mainWidth := a.mainWidth()

	inputHeight := 4
	statusHeight := 1
	tabHeight := 1
	panelHeight := a.height - inputHeight - statusHeight - tabHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	panel := a.renderActivePanel(mainWidth, panelHeight)
	if a.pending != nil {
		modal := RenderConsent(*a.pending, mainWidth*2/3, a.theme)
		panel = lipgloss.Place(mainWidth, panelHeight, lipgloss.Center, lipgloss.Center, modal)
	}
	inputBox := a.theme.InputStyle.Width(mainWidth).Render(a.input.View())
	statusBar := a.renderStatusBar(a.width)

	// 左侧主区域 / Left main area
	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel, inputBox)

	// 右侧侧边栏 / Right sidebar
	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-statusHeight)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}

	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

func (a App) renderTabs() string {
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelChat, a.locale.T("panel.chat")},
		{PanelSelection, a.locale.T("panel.selection")},
		{PanelLogs, a.locale.T("panel.logs")},
	}

	var parts []string
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderActivePanel(width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height)

	var content string
	switch a.activePanel {
	case PanelChat:
		content = a.chatView.View()
	case PanelSelection:
		content = a.selectionView.View()
	case PanelLogs:
		if len(a.logLines) == 0 {
			content = a.theme.MutedStyle.Render("  No logs yet")
		} else {
			content = a.logsView.View()
		}
	}
	return style.Render(content)
}

func (a App) renderSidebar(width, height int) string {
	var parts []string

	parts = append(parts, a.theme.TitleStyle.Render(" photoagent"))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("status.library")))
	parts = append(parts, "  "+a.info.Library)
	parts = append(parts, fmt.Sprintf("  v%d", a.snap.GalleryVersion))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" Planner"))
	parts = append(parts, "  "+a.info.Planner)
	if a.info.Session != "" {
		parts = append(parts, "  "+a.info.Session)
	}
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("panel.selection")))
	parts = append(parts, fmt.Sprintf("  %d", len(a.snap.Selection)))

	style := a.theme.SidebarStyle.
		Width(width).
		Height(height)
	return style.Render(strings.Join(parts, "\n"))
}

func (a App) statusText() string {
	switch a.snap.Status {
	case conversation.StatusLoading:
		return a.locale.T("status.loading")
	case conversation.StatusRequiresPermission:
		return a.locale.T("status.requires_permission")
	default:
		return a.locale.T("status.idle")
	}
}

func (a App) renderStatusBar(width int) string {
	left := " " + a.statusText()
	if a.lastError != "" {
		left += " · " + a.theme.ErrorStyle.Render(a.lastError)
	}
	right := a.locale.T("keys.enter") + " · " + a.locale.T("keys.esc") + "  "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

// Run 启动 Bubble Tea TUI，直到用户退出
// Run starts the Bubble Tea TUI and blocks until the user quits.
func Run(ctx context.Context, sess Session, consent ConsentQueue, info Info) error {
	updates, cancel := sess.State().Subscribe()
	defer cancel()

	app := NewApp(ctx, sess, consent, updates, info)
	app.theme = AutoTheme()
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
