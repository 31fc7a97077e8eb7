package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/api"
)

type formField int

const (
	fieldTitle formField = iota
	fieldDescription
	fieldChatNames
	fieldCalendar
	fieldMonth
	fieldDay
	fieldHour
	fieldMinute
	fieldEnabled
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldTitle:       "标题",
	fieldDescription: "描述",
	fieldChatNames:   "聊天名称",
	fieldCalendar:    "日历类型",
	fieldMonth:       "月份",
	fieldDay:         "日期",
	fieldHour:        "小时",
	fieldMinute:      "分钟",
	fieldEnabled:     "启用",
}

var fieldPlaceholders = [fieldCount]string{
	fieldTitle:       "提醒标题",
	fieldDescription: "可选",
	fieldChatNames:   "多个名称用 、 或逗号分隔",
	fieldMonth:       "留空为每月",
	fieldDay:         "留空为每天",
	fieldHour:        "0-23",
	fieldMinute:      "0-59",
}

// reminderForm edits one reminder. Text fields use textinput; calendar and
// enabled are toggled in place.
type reminderForm struct {
	id       int64
	inputs   [fieldCount]textinput.Model
	calendar api.CalendarType
	enabled  bool
	cursor   formField
}

func newReminderForm(r *api.Reminder) *reminderForm {
	f := &reminderForm{calendar: api.CalendarSolar, enabled: true}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 128
		ti.Placeholder = fieldPlaceholders[i]
		ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)
		f.inputs[i] = ti
	}
	f.inputs[fieldHour].SetValue("8")
	f.inputs[fieldMinute].SetValue("0")

	if r != nil {
		f.id = r.ID
		f.inputs[fieldTitle].SetValue(r.Title)
		f.inputs[fieldDescription].SetValue(r.Description)
		f.inputs[fieldChatNames].SetValue(api.JoinChatNames(r.ChatNames.Names))
		if r.CalendarType == api.CalendarLunar {
			f.calendar = api.CalendarLunar
		}
		f.inputs[fieldMonth].SetValue(optionalInt(r.Month))
		f.inputs[fieldDay].SetValue(optionalInt(r.Day))
		f.inputs[fieldHour].SetValue(strconv.Itoa(r.Hour))
		f.inputs[fieldMinute].SetValue(strconv.Itoa(r.Minute))
		f.enabled = bool(r.Enabled)
	}
	return f
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func (f *reminderForm) editing() bool { return f.id != 0 }

func (f *reminderForm) setWidth(w int) {
	for i := range f.inputs {
		f.inputs[i].Width = max(w-20, 10)
	}
}

func (f *reminderForm) isText(field formField) bool {
	return field != fieldCalendar && field != fieldEnabled
}

// focus moves keyboard focus to the cursor field.
func (f *reminderForm) focus() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	if f.isText(f.cursor) {
		f.inputs[f.cursor].Focus()
		return textinput.Blink
	}
	return nil
}

func (f *reminderForm) move(delta int) tea.Cmd {
	f.cursor = formField((int(f.cursor) + delta + int(fieldCount)) % int(fieldCount))
	return f.focus()
}

// Update handles navigation and toggles; other keys go to the focused input.
func (f *reminderForm) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return f.move(1)
	case "shift+tab", "up":
		return f.move(-1)
	}

	if !f.isText(f.cursor) {
		switch {
		case key.Matches(msg, keys.Toggle), msg.String() == "left", msg.String() == "right":
			f.toggle()
		}
		return nil
	}
	return f.updateInput(msg)
}

func (f *reminderForm) updateInput(msg tea.Msg) tea.Cmd {
	if !f.isText(f.cursor) {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.cursor], cmd = f.inputs[f.cursor].Update(msg)
	return cmd
}

func (f *reminderForm) toggle() {
	switch f.cursor {
	case fieldCalendar:
		if f.calendar == api.CalendarSolar {
			f.calendar = api.CalendarLunar
		} else {
			f.calendar = api.CalendarSolar
		}
	case fieldEnabled:
		f.enabled = !f.enabled
	}
}

// build returns the reminder described by the form, or a notice naming the
// first problem.
func (f *reminderForm) build() (*api.Reminder, string) {
	title := strings.TrimSpace(f.inputs[fieldTitle].Value())
	if title == "" {
		return nil, "请输入提醒标题"
	}

	r := &api.Reminder{
		ID:           f.id,
		Title:        title,
		Description:  strings.TrimSpace(f.inputs[fieldDescription].Value()),
		CalendarType: f.calendar,
		Enabled:      api.Flag(f.enabled),
		ChatNames:    api.Encoded(api.SplitChatNames(f.inputs[fieldChatNames].Value())...),
	}

	var ok bool
	if r.Month, ok = f.optional(fieldMonth); !ok {
		return nil, fieldLabels[fieldMonth] + "必须是数字"
	}
	if r.Day, ok = f.optional(fieldDay); !ok {
		return nil, fieldLabels[fieldDay] + "必须是数字"
	}
	if r.Hour, ok = f.required(fieldHour); !ok {
		return nil, fieldLabels[fieldHour] + "必须是数字"
	}
	if r.Minute, ok = f.required(fieldMinute); !ok {
		return nil, fieldLabels[fieldMinute] + "必须是数字"
	}
	return r, ""
}

func (f *reminderForm) optional(field formField) (*int, bool) {
	v := strings.TrimSpace(f.inputs[field].Value())
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, false
	}
	return &n, true
}

func (f *reminderForm) required(field formField) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(f.inputs[field].Value()))
	return n, err == nil
}

func (f *reminderForm) View() string {
	var b strings.Builder

	heading := "添加提醒"
	if f.editing() {
		heading = "编辑提醒"
	}
	b.WriteString(titleStyle.Render(heading))
	b.WriteString("\n")

	for i := formField(0); i < fieldCount; i++ {
		label := formLabelStyle.Render("  " + fieldLabels[i])
		if i == f.cursor {
			label = formActiveLabelStyle.Render("> " + fieldLabels[i])
		}

		var value string
		switch i {
		case fieldCalendar:
			value = renderChoices(
				[]string{api.CalendarSolar.Label(), api.CalendarLunar.Label()},
				f.calendar.Label())
		case fieldEnabled:
			value = "[ ] 已禁用"
			if f.enabled {
				value = "[x] 已启用"
			}
		default:
			value = f.inputs[i].View()
		}
		b.WriteString(label + value + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("tab/↑↓ 切换字段 · space 切换选项 · enter 保存 · esc 取消"))
	return b.String()
}
