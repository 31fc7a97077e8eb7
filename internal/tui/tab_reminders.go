package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/api"
)

// reminderItem implements list.Item for the reminders list.
type reminderItem struct {
	reminder *api.Reminder
}

func (i reminderItem) Title() string { return i.reminder.Title }
func (i reminderItem) FilterValue() string {
	return i.reminder.Title + " " + strings.Join(i.reminder.ChatNames.Names, " ")
}
func (i reminderItem) Description() string { return i.reminder.Description }

// reminderItemDelegate renders title, tag + schedule, and the description.
type reminderItemDelegate struct{}

func (d reminderItemDelegate) Height() int                             { return 3 }
func (d reminderItemDelegate) Spacing() int                            { return 1 }
func (d reminderItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d reminderItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(reminderItem)
	if !ok {
		return
	}
	r := ri.reminder

	title := "  " + r.Title
	if index == m.Index() {
		title = selectedStyle.Render("> " + r.Title)
	} else {
		title = lipgloss.NewStyle().Foreground(colorFg).Render(title)
	}

	tag := tagOffStyle.Render("已禁用")
	if r.Enabled {
		tag = tagOnStyle.Render("已启用")
	}
	meta := "  " + tag + " " + dimStyle.Render(api.FormatSchedule(r))
	if len(r.ChatNames.Names) > 0 {
		meta += dimStyle.Render("  → " + api.JoinChatNames(r.ChatNames.Names))
	}

	desc := ""
	if r.Description != "" {
		desc = dimStyle.PaddingLeft(2).Render(truncate(r.Description, m.Width()-4))
	}

	fmt.Fprintf(w, "%s\n%s\n%s", title, meta, desc)
}

// remindersModel manages the reminders tab: a list plus an add/edit form.
type remindersModel struct {
	list      list.Model
	reminders []*api.Reminder
	width     int
	height    int

	form    *reminderForm
	confirm confirmDialog
	loading bool
	saving  bool
}

func newRemindersModel() remindersModel {
	l := list.New(nil, reminderItemDelegate{}, 0, 0)
	l.Title = "提醒列表"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("条提醒", "条提醒")
	l.Styles.Title = titleStyle
	l.Styles.FilterPrompt = lipgloss.NewStyle().Foreground(colorGreen)
	l.Styles.FilterCursor = lipgloss.NewStyle().Foreground(colorGreen)

	return remindersModel{list: l, loading: true}
}

func (rm *remindersModel) setSize(w, h int) {
	rm.width = w
	rm.height = h
	rm.list.SetSize(w, h)
	if rm.form != nil {
		rm.form.setWidth(w)
	}
}

func (rm *remindersModel) setReminders(reminders []*api.Reminder) {
	rm.reminders = reminders
	items := make([]list.Item, len(reminders))
	for i, r := range reminders {
		items[i] = reminderItem{reminder: r}
	}
	rm.list.SetItems(items)
}

func (rm *remindersModel) selected() *api.Reminder {
	item, ok := rm.list.SelectedItem().(reminderItem)
	if !ok {
		return nil
	}
	return item.reminder
}

func (rm *remindersModel) capturing() bool {
	return rm.form != nil || rm.confirm.active || rm.list.FilterState() == list.Filtering
}

func (rm *remindersModel) openForm(r *api.Reminder) tea.Cmd {
	rm.form = newReminderForm(r)
	rm.form.setWidth(rm.width)
	return rm.form.focus()
}

func (rm *remindersModel) closeForm() {
	rm.form = nil
}

func (rm *remindersModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if rm.form != nil {
		return rm.updateForm(msg, root)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if rm.confirm.active {
			return rm.confirm.Update(msg)
		}
		// When filtering, pass all keys to list.
		if rm.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			rm.list, cmd = rm.list.Update(msg)
			return cmd
		}

		switch {
		case key.Matches(msg, keys.Add):
			return rm.openForm(nil)

		case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
			if r := rm.selected(); r != nil {
				return rm.openForm(r)
			}
			return nil

		case key.Matches(msg, keys.Delete):
			r := rm.selected()
			if r == nil || rm.saving {
				return nil
			}
			client := root.client()
			rm.confirm.open(fmt.Sprintf("确定要删除提醒 \"%s\" 吗？", r.Title), func() tea.Cmd {
				rm.saving = true
				return deleteReminder(client, r.ID)
			})
			return nil
		}
	}

	var cmd tea.Cmd
	rm.list, cmd = rm.list.Update(msg)
	return cmd
}

func (rm *remindersModel) updateForm(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return rm.form.updateInput(msg)
	}

	switch {
	case key.Matches(keyMsg, keys.Back):
		rm.closeForm()
		return nil
	case key.Matches(keyMsg, keys.Enter), keyMsg.String() == "ctrl+s":
		if rm.saving {
			return nil
		}
		r, notice := rm.form.build()
		if notice != "" {
			root.setNotification(notice, true)
			return nil
		}
		rm.saving = true
		return saveReminder(root.client(), r)
	}
	return rm.form.Update(keyMsg)
}

func (rm *remindersModel) View(s spinner.Model) string {
	var content string
	switch {
	case rm.form != nil:
		content = rm.form.View()
		if rm.saving {
			content += "\n" + s.View() + " 保存中..."
		}
	case rm.loading && len(rm.reminders) == 0:
		content = s.View() + " 加载中..."
	default:
		content = rm.list.View()
		if rm.confirm.active {
			content = lipgloss.JoinVertical(lipgloss.Left, rm.confirm.View(), content)
		}
	}
	return forceHeight(content, rm.width, rm.height)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen < 1 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "~"
}
