package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/config"
)

var settingHints = map[string]string{
	config.KeyAPIBase:           "管理服务 REST 接口地址",
	config.KeyPollInterval:      "后台检查微信状态的间隔，重启后生效",
	config.KeyLoginRecheckDelay: "发送登录指令后等待多久再次检查，重启后生效",
	config.KeyRequestTimeout:    "单次请求超时",
	config.KeyLogLevel:          "日志级别",
}

func settingLabel(key string) string {
	if def, ok := config.LookupSetting(key); ok {
		return def.Label
	}
	return key
}

type settingsModel struct {
	settings map[string]string
	cursor   int
	editing  bool
	input    textinput.Model
	width    int
	height   int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorGreen)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return settingsModel{
		settings: make(map[string]string),
		input:    ti,
	}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = w / 2
}

func (sm *settingsModel) setSettings(s map[string]string) {
	sm.settings = s
}

func (sm *settingsModel) currentDef() config.SettingDef {
	if sm.cursor >= 0 && sm.cursor < len(config.SettingDefs) {
		return config.SettingDefs[sm.cursor]
	}
	return config.SettingDefs[0]
}

func (sm *settingsModel) value(def config.SettingDef) string {
	if v, ok := sm.settings[def.Key]; ok {
		return v
	}
	return def.Default
}

// choiceIndex returns the current index in the choices slice for a choice setting.
func (sm *settingsModel) choiceIndex(def config.SettingDef) int {
	val := sm.value(def)
	for i, c := range def.Choices {
		if c == val {
			return i
		}
	}
	return 0
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if sm.editing {
		return sm.updateEditing(msg, root)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	def := sm.currentDef()

	switch {
	case key.Matches(keyMsg, keys.Up):
		if sm.cursor > 0 {
			sm.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if sm.cursor < len(config.SettingDefs)-1 {
			sm.cursor++
		}
	case key.Matches(keyMsg, keys.Enter):
		if def.Kind == config.SettingChoice {
			return sm.cycleChoice(root, 1)
		}
		sm.editing = true
		sm.input.SetValue(sm.value(def))
		sm.input.CursorEnd()
		sm.input.Focus()
		return textinput.Blink
	case keyMsg.String() == "left":
		if def.Kind == config.SettingChoice {
			return sm.cycleChoice(root, -1)
		}
	case keyMsg.String() == "right":
		if def.Kind == config.SettingChoice {
			return sm.cycleChoice(root, 1)
		}
	}
	return nil
}

// cycleChoice moves to the next/prev choice and saves it.
func (sm *settingsModel) cycleChoice(root *Model, dir int) tea.Cmd {
	def := sm.currentDef()
	idx := (sm.choiceIndex(def) + dir + len(def.Choices)) % len(def.Choices)
	val := def.Choices[idx]
	sm.settings[def.Key] = val
	return saveSetting(root.app, def.Key, val)
}

func (sm *settingsModel) updateEditing(msg tea.Msg, root *Model) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, keys.Back):
			sm.editing = false
			sm.input.Blur()
			return nil
		case key.Matches(keyMsg, keys.Enter):
			sm.editing = false
			sm.input.Blur()
			return saveSetting(root.app, sm.currentDef().Key, sm.input.Value())
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("设置"))
	b.WriteString("\n")

	for i, def := range config.SettingDefs {
		isSelected := i == sm.cursor
		val := sm.value(def)

		var line string
		if isSelected {
			label := formActiveLabelStyle.Width(16).Render("> " + def.Label)
			switch {
			case sm.editing:
				line = label + sm.input.View()
			case def.Kind == config.SettingChoice:
				line = label + renderChoices(def.Choices, val)
			default:
				line = label + cardValueStyle.Render(val)
			}
		} else {
			label := formLabelStyle.Width(16).Render("  " + def.Label)
			line = label + dimStyle.Render(val)
		}
		b.WriteString(line + "\n")

		// Show description for selected item.
		if isSelected && !sm.editing {
			hint := settingHints[def.Key]
			if def.Kind == config.SettingChoice {
				hint += "  (enter/←→ 切换)"
			} else {
				hint += fmt.Sprintf("  (enter 编辑，默认: %s)", def.Default)
			}
			b.WriteString(dimStyle.PaddingLeft(4).Render(hint) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

// renderChoices renders a choice selector with the active choice highlighted.
func renderChoices(choices []string, current string) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		if c == current {
			parts[i] = selectedStyle.Render("[" + c + "]")
		} else {
			parts[i] = dimStyle.Render(" " + c + " ")
		}
	}
	return strings.Join(parts, " ")
}
