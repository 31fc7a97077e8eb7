package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/qrcode"
	"wxadmin/internal/storage/models"
	"wxadmin/internal/wechat"
)

type statusModel struct {
	width  int
	height int

	actions []wechat.Action
	cursor  int
	history []*models.StatusEntry

	// Rendered QR code, cached per payload and width.
	qrPayload string
	qrWidth   int
	qrText    string
	qrErr     error
}

func newStatusModel() statusModel {
	return statusModel{actions: wechat.ActionsFor(wechat.Checking)}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

// setSnapshot refreshes the offered actions and the cached QR rendering.
func (sm *statusModel) setSnapshot(snap wechat.Snapshot) {
	sm.actions = snap.Actions()
	if sm.cursor >= len(sm.actions) {
		sm.cursor = len(sm.actions) - 1
	}
	if !snap.QrVisible {
		sm.qrPayload, sm.qrText, sm.qrErr = "", "", nil
	}
}

func (sm *statusModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if root.wechat.QrVisible {
		if key.Matches(keyMsg, keys.Back) || key.Matches(keyMsg, keys.Enter) {
			root.ctrl.DismissQrCode()
		}
		return nil
	}

	switch {
	case keyMsg.String() == "left":
		if sm.cursor > 0 {
			sm.cursor--
		}
	case keyMsg.String() == "right":
		if sm.cursor < len(sm.actions)-1 {
			sm.cursor++
		}
	case key.Matches(keyMsg, keys.Enter):
		if sm.cursor >= 0 && sm.cursor < len(sm.actions) {
			return sm.run(sm.actions[sm.cursor], root)
		}
	case key.Matches(keyMsg, keys.Login):
		return sm.run(wechat.ActionLogin, root)
	case key.Matches(keyMsg, keys.QrCode):
		return sm.run(wechat.ActionQrCode, root)
	}
	return nil
}

// run triggers action if the current state offers it and nothing is in flight.
func (sm *statusModel) run(action wechat.Action, root *Model) tea.Cmd {
	if root.wechat.Busy || !sm.offers(action) {
		return nil
	}
	switch action {
	case wechat.ActionRefresh:
		return checkStatus(root.ctrl)
	case wechat.ActionLogin:
		return attemptLogin(root.ctrl)
	case wechat.ActionQrCode:
		return requestQrCode(root.ctrl)
	}
	return nil
}

func (sm *statusModel) offers(action wechat.Action) bool {
	for _, a := range sm.actions {
		if a == action {
			return true
		}
	}
	return false
}

func (sm *statusModel) View(snap wechat.Snapshot, s spinner.Model) string {
	if snap.QrVisible && snap.QrCode != "" {
		return forceHeight(sm.viewQrCode(snap.QrCode), sm.width, sm.height)
	}

	w := max(sm.width-6, 30)
	card := cardStyle.Width(w).Render(sm.viewStatusCard(snap, s))

	parts := []string{card, sm.viewActions(snap)}
	if len(sm.history) > 0 {
		parts = append(parts, "", sm.viewHistory())
	}
	return forceHeight(lipgloss.JoinVertical(lipgloss.Left, parts...), sm.width, sm.height)
}

func (sm *statusModel) viewStatusCard(snap wechat.Snapshot, s spinner.Model) string {
	d := snap.State.Display()
	label := pillStyle(d.Tone).Render(" " + d.Label + " ")
	if snap.Busy {
		label += " " + s.View()
	}

	rows := []string{
		cardTitleStyle.Render("微信状态"),
		sm.row("状态", label),
		sm.row("说明", d.Description),
	}
	if !snap.LastChecked.IsZero() {
		rows = append(rows, sm.row("上次检查", snap.LastChecked.Local().Format("15:04:05")))
	}
	if snap.RecheckPending {
		rows = append(rows, sm.row("复查", "登录后将自动复查状态"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (sm *statusModel) viewActions(snap wechat.Snapshot) string {
	buttons := make([]string, len(sm.actions))
	for i, a := range sm.actions {
		style := buttonStyle
		if i == sm.cursor {
			style = activeButtonStyle
		}
		if snap.Busy {
			style = style.Foreground(colorDimFg)
		}
		buttons[i] = style.Render(a.Label())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...) + "\n" +
		dimStyle.Render("  ←/→ 选择 · enter 执行 · r 刷新 · l 登录 · g 二维码")
}

func (sm *statusModel) viewHistory() string {
	lines := []string{cardTitleStyle.Render("状态记录")}
	for _, e := range sm.history {
		from := wechat.ParseState(e.PrevState).Display().Label
		to := wechat.ParseState(e.State)
		line := fmt.Sprintf("%s  %s → %s",
			e.RecordedAt.Local().Format("01-02 15:04:05"),
			from,
			lipgloss.NewStyle().Foreground(toneColor(to.Display().Tone)).Render(to.Display().Label))
		if e.Source != "" {
			line += dimStyle.Render("  (" + sourceLabel(wechat.Source(e.Source)) + ")")
		}
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n")
}

// viewQrCode renders the QR modal. The code is drawn once per payload and
// width.
func (sm *statusModel) viewQrCode(payload string) string {
	if payload != sm.qrPayload || sm.width != sm.qrWidth {
		sm.qrPayload, sm.qrWidth = payload, sm.width
		sm.qrText, sm.qrErr = qrcode.RenderPayload(payload, qrcode.RenderOptions{MaxWidth: sm.width - 4})
	}

	var body string
	switch {
	case errors.Is(sm.qrErr, qrcode.ErrTooWide):
		body = dimStyle.Render("终端宽度不足以显示二维码，请放大窗口或使用 wxadmin wechat qrcode --out 保存图片")
	case sm.qrErr != nil:
		body = dimStyle.Render(fmt.Sprintf("二维码无法显示: %v", sm.qrErr))
	default:
		body = qrStyle.Render(sm.qrText)
	}

	return lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("微信登录二维码"),
		body,
		"",
		dimStyle.Render("请使用微信扫描二维码登录 · esc 关闭"),
	)
}

func (sm *statusModel) row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func sourceLabel(s wechat.Source) string {
	switch s {
	case wechat.SourcePoll:
		return "定时"
	case wechat.SourceManual:
		return "手动"
	case wechat.SourceLogin:
		return "登录"
	case wechat.SourceQrCode:
		return "扫码"
	case wechat.SourceRecheck:
		return "复查"
	}
	return string(s)
}
