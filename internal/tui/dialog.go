package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmDialog asks a yes/no question before a destructive action.
type confirmDialog struct {
	prompt string
	action func() tea.Cmd
	active bool
}

func (d *confirmDialog) open(prompt string, action func() tea.Cmd) {
	d.prompt = prompt
	d.action = action
	d.active = true
}

func (d *confirmDialog) close() {
	d.prompt = ""
	d.action = nil
	d.active = false
}

// Update handles a key while the dialog is open. y/enter runs the action,
// esc/n cancels; everything else is swallowed.
func (d *confirmDialog) Update(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Confirm), key.Matches(msg, keys.Enter):
		action := d.action
		d.close()
		if action != nil {
			return action()
		}
	case key.Matches(msg, keys.Back), msg.String() == "n":
		d.close()
	}
	return nil
}

func (d *confirmDialog) View() string {
	return dialogStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		d.prompt,
		"",
		dimStyle.Render("y/enter 确定 · esc 取消"),
	))
}
