package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"wxadmin/internal/api"
	"wxadmin/internal/app"
	"wxadmin/internal/events"
	"wxadmin/internal/storage"
	"wxadmin/internal/wechat"
)

// historyRows is how many transitions the status tab shows.
const historyRows = 8

// loadReminders fetches all reminders.
func loadReminders(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		reminders, err := client.ListReminders(context.Background())
		return remindersLoadedMsg{reminders: reminders, err: err}
	}
}

// loadProcessors fetches the processor catalogue and the chat assignments
// concurrently.
func loadProcessors(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		var msg processorsLoadedMsg
		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			var err error
			msg.processors, err = client.ListProcessors(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			msg.chats, err = client.ListChatProcessors(ctx)
			return err
		})
		msg.err = g.Wait()
		return msg
	}
}

// loadSettings fetches the stored settings.
func loadSettings(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		settings, err := store.GetAllSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// loadHistory fetches the most recent state transitions.
func loadHistory(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		entries, err := store.GetStatusHistory(context.Background(), historyRows)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

// saveReminder creates r, or updates it when it already has an id.
func saveReminder(client *api.Client, r *api.Reminder) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if r.ID == 0 {
			_, err := client.CreateReminder(ctx, r)
			return reminderSavedMsg{op: opCreate, err: err}
		}
		_, err := client.UpdateReminder(ctx, r.ID, r)
		return reminderSavedMsg{op: opUpdate, err: err}
	}
}

func deleteReminder(client *api.Client, id int64) tea.Cmd {
	return func() tea.Msg {
		_, err := client.DeleteReminder(context.Background(), id)
		return reminderSavedMsg{op: opDelete, err: err}
	}
}

func addChat(client *api.Client, name string) tea.Cmd {
	return func() tea.Msg {
		_, err := client.AddChat(context.Background(), name)
		return chatSavedMsg{op: opCreate, err: err}
	}
}

func setChatProcessors(client *api.Client, name string, ids []string) tea.Cmd {
	return func() tea.Msg {
		_, err := client.SetChatProcessors(context.Background(), name, ids)
		return chatSavedMsg{op: opUpdate, err: err}
	}
}

func deleteChat(client *api.Client, name string) tea.Cmd {
	return func() tea.Msg {
		_, err := client.DeleteChat(context.Background(), name)
		return chatSavedMsg{op: opDelete, err: err}
	}
}

// startController attaches the controller: arms polling and runs the first
// check.
func startController(ctrl *wechat.Controller) tea.Cmd {
	return func() tea.Msg {
		return controllerStartedMsg{err: ctrl.Start(context.Background())}
	}
}

// waitForEvent blocks until the controller publishes. The root model re-issues
// it after every event so the subscription is drained for the program's life.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return controllerEventMsg{event: ev, ok: ok}
	}
}

func checkStatus(ctrl *wechat.Controller) tea.Cmd {
	return func() tea.Msg {
		_, _ = ctrl.CheckStatus(context.Background())
		return controllerActionMsg{}
	}
}

func attemptLogin(ctrl *wechat.Controller) tea.Cmd {
	return func() tea.Msg {
		_ = ctrl.AttemptLogin(context.Background())
		return controllerActionMsg{}
	}
}

func requestQrCode(ctrl *wechat.Controller) tea.Cmd {
	return func() tea.Msg {
		_ = ctrl.RequestQrCode(context.Background())
		return controllerActionMsg{}
	}
}

// saveSetting validates, stores and applies a single setting.
func saveSetting(a *app.App, key, value string) tea.Cmd {
	return func() tea.Msg {
		saved, err := a.SaveSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, value: saved, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
