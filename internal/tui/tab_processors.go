package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/api"
)

// chatItem implements list.Item for the chat assignments list.
type chatItem struct {
	chat   *api.ChatProcessors
	labels []string
}

func (i chatItem) Title() string       { return i.chat.ChatName }
func (i chatItem) FilterValue() string { return i.chat.ChatName }
func (i chatItem) Description() string {
	if len(i.labels) == 0 {
		return "未配置处理器"
	}
	return strings.Join(i.labels, " ")
}

type chatItemDelegate struct{}

func (d chatItemDelegate) Height() int                             { return 2 }
func (d chatItemDelegate) Spacing() int                            { return 1 }
func (d chatItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d chatItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ci, ok := item.(chatItem)
	if !ok {
		return
	}

	var title string
	if index == m.Index() {
		title = selectedStyle.Render("> " + ci.Title())
	} else {
		title = lipgloss.NewStyle().Foreground(colorFg).Render("  " + ci.Title())
	}

	var desc string
	if len(ci.labels) == 0 {
		desc = dimStyle.Render("  未配置处理器")
	} else {
		chips := make([]string, len(ci.labels))
		for i, l := range ci.labels {
			chips[i] = chipStyle.Render(l)
		}
		desc = "  " + strings.Join(chips, " ")
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

type processorsMode int

const (
	modeList processorsMode = iota
	modeAddChat
	modeEditProcessors
)

// processorsModel manages the chat-processor assignment tab.
type processorsModel struct {
	list       list.Model
	processors []*api.Processor
	chats      []*api.ChatProcessors
	width      int
	height     int

	mode     processorsMode
	input    textinput.Model
	editChat string
	selected map[string]bool
	cursor   int
	confirm  confirmDialog
	loading  bool
	saving   bool
}

func newProcessorsModel() processorsModel {
	l := list.New(nil, chatItemDelegate{}, 0, 0)
	l.Title = "聊天配置"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("个聊天", "个聊天")
	l.Styles.Title = titleStyle
	l.Styles.FilterPrompt = lipgloss.NewStyle().Foreground(colorGreen)
	l.Styles.FilterCursor = lipgloss.NewStyle().Foreground(colorGreen)

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Prompt = "> "
	ti.Placeholder = "输入微信聊天名称"
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorGreen)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return processorsModel{list: l, input: ti, loading: true}
}

func (pm *processorsModel) setSize(w, h int) {
	pm.width = w
	pm.height = h
	pm.list.SetSize(w, h)
	pm.input.Width = w / 2
}

func (pm *processorsModel) setData(processors []*api.Processor, chats []*api.ChatProcessors) {
	pm.processors = processors
	pm.chats = chats

	items := make([]list.Item, len(chats))
	for i, c := range chats {
		labels := make([]string, len(c.Processors.Names))
		for j, id := range c.Processors.Names {
			labels[j] = api.ProcessorLabel(processors, id)
		}
		items[i] = chatItem{chat: c, labels: labels}
	}
	pm.list.SetItems(items)
}

func (pm *processorsModel) selectedChat() *api.ChatProcessors {
	item, ok := pm.list.SelectedItem().(chatItem)
	if !ok {
		return nil
	}
	return item.chat
}

func (pm *processorsModel) capturing() bool {
	return pm.mode != modeList || pm.confirm.active || pm.list.FilterState() == list.Filtering
}

func (pm *processorsModel) closeModal() {
	pm.mode = modeList
	pm.input.Blur()
	pm.input.SetValue("")
	pm.editChat = ""
	pm.selected = nil
	pm.cursor = 0
}

// openEditor starts editing chat's processor set.
func (pm *processorsModel) openEditor(chat *api.ChatProcessors) {
	pm.mode = modeEditProcessors
	pm.editChat = chat.ChatName
	pm.selected = make(map[string]bool, chat.Processors.Len())
	for _, id := range chat.Processors.Names {
		pm.selected[id] = true
	}
	pm.cursor = 0
}

// selectedIDs returns the checked processors in catalogue order, followed by
// any assigned ids the catalogue no longer lists.
func (pm *processorsModel) selectedIDs() []string {
	ids := make([]string, 0, len(pm.selected))
	known := make(map[string]bool, len(pm.processors))
	for _, p := range pm.processors {
		known[p.ID] = true
		if pm.selected[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	for _, c := range pm.chats {
		if c.ChatName != pm.editChat {
			continue
		}
		for _, id := range c.Processors.Names {
			if !known[id] && pm.selected[id] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (pm *processorsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	switch pm.mode {
	case modeAddChat:
		return pm.updateAddChat(msg, root)
	case modeEditProcessors:
		return pm.updateEditor(msg, root)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pm.confirm.active {
			return pm.confirm.Update(msg)
		}
		if pm.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			pm.list, cmd = pm.list.Update(msg)
			return cmd
		}

		switch {
		case key.Matches(msg, keys.Add):
			pm.mode = modeAddChat
			pm.input.SetValue("")
			pm.input.Focus()
			return textinput.Blink

		case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
			if c := pm.selectedChat(); c != nil {
				pm.openEditor(c)
			}
			return nil

		case key.Matches(msg, keys.Delete):
			c := pm.selectedChat()
			if c == nil || pm.saving {
				return nil
			}
			client, name := root.client(), c.ChatName
			pm.confirm.open(fmt.Sprintf("确定要删除 \"%s\" 的配置吗？", name), func() tea.Cmd {
				pm.saving = true
				return deleteChat(client, name)
			})
			return nil
		}
	}

	var cmd tea.Cmd
	pm.list, cmd = pm.list.Update(msg)
	return cmd
}

func (pm *processorsModel) updateAddChat(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Back):
			pm.closeModal()
			return nil
		case key.Matches(msg, keys.Enter):
			if pm.saving {
				return nil
			}
			name := strings.TrimSpace(pm.input.Value())
			if name == "" {
				root.setNotification("请输入聊天名称", true)
				return nil
			}
			pm.saving = true
			return addChat(root.client(), name)
		}
	}

	var cmd tea.Cmd
	pm.input, cmd = pm.input.Update(msg)
	return cmd
}

func (pm *processorsModel) updateEditor(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(keyMsg, keys.Back):
		pm.closeModal()
	case key.Matches(keyMsg, keys.Up):
		if pm.cursor > 0 {
			pm.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if pm.cursor < len(pm.processors)-1 {
			pm.cursor++
		}
	case key.Matches(keyMsg, keys.Toggle):
		if pm.cursor < len(pm.processors) {
			id := pm.processors[pm.cursor].ID
			pm.selected[id] = !pm.selected[id]
		}
	case key.Matches(keyMsg, keys.Enter):
		if pm.saving {
			return nil
		}
		pm.saving = true
		return setChatProcessors(root.client(), pm.editChat, pm.selectedIDs())
	}
	return nil
}

func (pm *processorsModel) View(s spinner.Model) string {
	var content string
	switch {
	case pm.mode == modeAddChat:
		content = pm.viewAddChat()
	case pm.mode == modeEditProcessors:
		content = pm.viewEditor()
	case pm.loading && len(pm.chats) == 0:
		content = s.View() + " 加载中..."
	default:
		content = pm.list.View()
		if pm.confirm.active {
			content = lipgloss.JoinVertical(lipgloss.Left, pm.confirm.View(), content)
		}
	}
	if pm.saving {
		content = s.View() + " 保存中...\n" + content
	}
	return forceHeight(content, pm.width, pm.height)
}

func (pm *processorsModel) viewAddChat() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("添加聊天配置"),
		pm.input.View(),
		"",
		dimStyle.Render("enter 确定 · esc 取消"),
	)
}

func (pm *processorsModel) viewEditor() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("配置处理器 - " + pm.editChat))
	b.WriteString("\n")

	if len(pm.processors) == 0 {
		b.WriteString(dimStyle.Render("没有可用的处理器"))
		b.WriteString("\n")
	}
	for i, p := range pm.processors {
		box := "[ ]"
		if pm.selected[p.ID] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, p.Label())
		if i == pm.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(colorFg).Render("  "+line) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("space 勾选 · enter 保存 · esc 取消"))
	return b.String()
}
