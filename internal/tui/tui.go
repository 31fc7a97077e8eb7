package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"wxadmin/internal/api"
	"wxadmin/internal/app"
	"wxadmin/internal/config"
	"wxadmin/internal/events"
	"wxadmin/internal/storage"
	"wxadmin/internal/wechat"
)

// Tab indices.
const (
	tabReminders  = 0
	tabProcessors = 1
	tabWeChat     = 2
	tabSettings   = 3
	tabCount      = 4
)

// notificationTTL is how long a notice stays in the header.
const notificationTTL = 4 * time.Second

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	app    *app.App
	store  storage.Storage
	ctrl   *wechat.Controller
	events <-chan events.Event
	logger *zap.Logger

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Controller state, refreshed on every controller event.
	wechat wechat.Snapshot

	// Tab models.
	remindersTab  remindersModel
	processorsTab processorsModel
	statusTab     statusModel
	settingsTab   settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	App        *app.App
	Controller *wechat.Controller
}

// NewModel creates a new root Model. It subscribes to the controller right
// away so no event published during start-up is missed.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Model{
		app:           deps.App,
		store:         deps.App.Storage,
		ctrl:          deps.Controller,
		events:        deps.Controller.Subscribe(),
		logger:        deps.App.Logger.Named("tui"),
		activeTab:     tabReminders,
		wechat:        deps.Controller.Snapshot(),
		spinner:       s,
		remindersTab:  newRemindersModel(),
		processorsTab: newProcessorsModel(),
		statusTab:     newStatusModel(),
		settingsTab:   newSettingsModel(),
	}
}

func (m *Model) client() *api.Client {
	return m.app.API()
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		startController(m.ctrl),
		loadReminders(m.client()),
		loadProcessors(m.client()),
		loadSettings(m.store),
		loadHistory(m.store),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.remindersTab.setSize(msg.Width, ch)
		m.processorsTab.setSize(msg.Width, ch)
		m.statusTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

	// Data loading.
	case remindersLoadedMsg:
		m.remindersTab.loading = false
		if msg.err != nil {
			m.logger.Warn("load reminders failed", zap.Error(msg.err))
			m.setNotification("加载失败", true)
		} else {
			m.remindersTab.setReminders(msg.reminders)
		}
	case processorsLoadedMsg:
		m.processorsTab.loading = false
		if msg.err != nil {
			m.logger.Warn("load processors failed", zap.Error(msg.err))
			m.setNotification("加载失败", true)
		} else {
			m.processorsTab.setData(msg.processors, msg.chats)
		}
	case settingsLoadedMsg:
		if msg.err == nil {
			m.settingsTab.setSettings(msg.settings)
		}
	case historyLoadedMsg:
		if msg.err == nil {
			m.statusTab.history = msg.entries
		}

	// Mutations.
	case reminderSavedMsg:
		m.remindersTab.saving = false
		if msg.err != nil {
			m.logger.Warn("reminder mutation failed", zap.Error(msg.err))
			m.setNotification(failureNotice(msg.op, msg.err), true)
		} else {
			m.setNotification(successNotice(msg.op), false)
			m.remindersTab.closeForm()
			cmds = append(cmds, loadReminders(m.client()))
		}
	case chatSavedMsg:
		m.processorsTab.saving = false
		if msg.err != nil {
			m.logger.Warn("chat mutation failed", zap.Error(msg.err))
			m.setNotification(failureNotice(msg.op, msg.err), true)
		} else {
			m.setNotification(successNotice(msg.op), false)
			m.processorsTab.closeModal()
			cmds = append(cmds, loadProcessors(m.client()))
		}

	// Controller.
	case controllerStartedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("状态监控启动失败: %v", msg.err), true)
		}
	case controllerEventMsg:
		if !msg.ok {
			break
		}
		m.applyControllerEvent(msg.event)
		cmds = append(cmds, waitForEvent(m.events))
		if msg.event.Type == events.StateChanged {
			cmds = append(cmds, loadHistory(m.store))
		}
	case controllerActionMsg:
		m.wechat = m.ctrl.Snapshot()
		m.statusTab.setSnapshot(m.wechat)

	// Settings.
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("保存失败: %v", msg.err), true)
			cmds = append(cmds, loadSettings(m.store))
		} else {
			m.settingsTab.settings[msg.key] = msg.value
			m.setNotification(fmt.Sprintf("已保存 %s", settingLabel(msg.key)), false)
			if msg.key == config.KeyAPIBase || msg.key == config.KeyRequestTimeout {
				cmds = append(cmds, loadReminders(m.client()), loadProcessors(m.client()))
			}
		}
	case configReloadedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("配置重载失败: %v", msg.err), true)
		} else {
			m.setNotification("配置已重载", false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	if m.busy() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(notificationTTL, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabReminders:
		cmds = append(cmds, m.remindersTab.Update(msg, m))
	case tabProcessors:
		cmds = append(cmds, m.processorsTab.Update(msg, m))
	case tabWeChat:
		cmds = append(cmds, m.statusTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

// applyControllerEvent mirrors a controller event into the model.
func (m *Model) applyControllerEvent(ev events.Event) {
	if ev.Type == events.NoticeRaised && ev.Notice != "" {
		m.setNotification(ev.Notice, isErrorNotice(ev.Notice))
	}
	m.wechat = m.ctrl.Snapshot()
	m.statusTab.setSnapshot(m.wechat)
}

func isErrorNotice(notice string) bool {
	switch notice {
	case wechat.NoticeOnline, wechat.NoticeLoginSent:
		return false
	}
	return true
}

func successNotice(op mutationOp) string {
	switch op {
	case opCreate:
		return "添加成功"
	case opUpdate:
		return "更新成功"
	default:
		return "删除成功"
	}
}

func failureNotice(op mutationOp, err error) string {
	var prefix string
	switch op {
	case opCreate:
		prefix = "添加失败"
	case opUpdate:
		prefix = "更新失败"
	default:
		prefix = "删除失败"
	}
	if err == nil {
		return prefix
	}
	return prefix + ": " + err.Error()
}

func (m *Model) busy() bool {
	return m.wechat.Busy ||
		m.remindersTab.loading || m.remindersTab.saving ||
		m.processorsTab.loading || m.processorsTab.saving
}

func (m *Model) View() string {
	if m.width == 0 {
		return "加载中..."
	}

	header := renderHeader(m.activeTab, m.wechat.State, m.wechat.Busy, m.width)

	var content string
	switch m.activeTab {
	case tabReminders:
		content = m.remindersTab.View(m.spinner)
	case tabProcessors:
		content = m.processorsTab.View(m.spinner)
	case tabWeChat:
		content = m.statusTab.View(m.wechat, m.spinner)
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	footer := renderFooter(renderHelpBar(m.showHelp), m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", max(width, 0))
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// capturing reports whether the active tab is taking raw key input.
func (m *Model) capturing() bool {
	switch m.activeTab {
	case tabReminders:
		return m.remindersTab.capturing()
	case tabProcessors:
		return m.processorsTab.capturing()
	case tabWeChat:
		return m.wechat.QrVisible
	case tabSettings:
		return m.settingsTab.editing
	}
	return false
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}
	if m.capturing() {
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		ch := m.contentHeight()
		m.remindersTab.setSize(m.width, ch)
		m.processorsTab.setSize(m.width, ch)
		m.statusTab.setSize(m.width, ch)
		m.settingsTab.setSize(m.width, ch)
		return nil, true

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return m.onTabEnter(), true

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return m.onTabEnter(), true

	case key.Matches(msg, keys.Refresh):
		switch m.activeTab {
		case tabReminders:
			m.remindersTab.loading = true
			return loadReminders(m.client()), true
		case tabProcessors:
			m.processorsTab.loading = true
			return loadProcessors(m.client()), true
		case tabWeChat:
			return tea.Batch(checkStatus(m.ctrl), loadHistory(m.store)), true
		case tabSettings:
			return loadSettings(m.store), true
		}
	}

	return nil, false
}

func (m *Model) onTabEnter() tea.Cmd {
	if m.activeTab == tabWeChat {
		return loadHistory(m.store)
	}
	return nil
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(deps Deps) *tea.Program {
	return tea.NewProgram(NewModel(deps), tea.WithAltScreen())
}

// Run attaches a connection-status controller, runs the program until the user
// quits, then detaches the controller.
func Run(a *app.App) error {
	ctrl, err := a.NewController()
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	p := NewProgram(Deps{App: a, Controller: ctrl})
	a.Watch(func(_ *config.Config, err error) {
		p.Send(configReloadedMsg{err: err})
	})

	_, err = p.Run()
	return err
}
