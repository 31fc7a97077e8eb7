package tui

import (
	"wxadmin/internal/api"
	"wxadmin/internal/events"
	"wxadmin/internal/storage/models"
)

// Data loading messages.

type remindersLoadedMsg struct {
	reminders []*api.Reminder
	err       error
}

type processorsLoadedMsg struct {
	processors []*api.Processor
	chats      []*api.ChatProcessors
	err        error
}

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

type historyLoadedMsg struct {
	entries []*models.StatusEntry
	err     error
}

// Mutation results.

type mutationOp int

const (
	opCreate mutationOp = iota
	opUpdate
	opDelete
)

type reminderSavedMsg struct {
	op  mutationOp
	err error
}

type chatSavedMsg struct {
	op  mutationOp
	err error
}

// Controller bridge.

type controllerEventMsg struct {
	event events.Event
	ok    bool
}

type controllerStartedMsg struct {
	err error
}

// controllerActionMsg reports a finished user action; the outcome itself
// arrives as controller events.
type controllerActionMsg struct{}

// Settings update messages.

type settingSavedMsg struct {
	key   string
	value string
	err   error
}

// configReloadedMsg follows a config file change.
type configReloadedMsg struct {
	err error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
