package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	pkgerrors "wxadmin/pkg/errors"
)

const pathReminders = "/reminders"

// ListReminders returns every reminder.
func (c *Client) ListReminders(ctx context.Context) ([]*Reminder, error) {
	body, err := c.do(ctx, http.MethodGet, pathReminders, nil)
	if err != nil {
		return nil, err
	}
	var reminders []*Reminder
	if err := decodeList(pathReminders, body, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// CreateReminder validates r and creates it.
func (c *Client) CreateReminder(ctx context.Context, r *Reminder) (*Result, error) {
	if err := ValidateReminder(r); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, pathReminders, submission(r))
	if err != nil {
		return nil, err
	}
	return decodeResult(pathReminders, body)
}

// UpdateReminder validates r and replaces reminder id with it.
func (c *Client) UpdateReminder(ctx context.Context, id int64, r *Reminder) (*Result, error) {
	if err := ValidateReminder(r); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%d", pathReminders, id)
	body, err := c.do(ctx, http.MethodPut, path, submission(r))
	if err != nil {
		return nil, err
	}
	return decodeResult(path, body)
}

// DeleteReminder removes reminder id.
func (c *Client) DeleteReminder(ctx context.Context, id int64) (*Result, error) {
	path := fmt.Sprintf("%s/%d", pathReminders, id)
	body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeResult(path, body)
}

// submission is the write shape: no id, chatnames JSON-encoded into a string.
func submission(r *Reminder) *Reminder {
	out := *r
	out.ID = 0
	out.Title = strings.TrimSpace(r.Title)
	if out.CalendarType == "" {
		out.CalendarType = CalendarSolar
	}
	out.ChatNames = Encoded(r.ChatNames.Names...)
	return &out
}

// ValidateReminder applies the required-field and range checks.
func ValidateReminder(r *Reminder) error {
	if strings.TrimSpace(r.Title) == "" {
		return &pkgerrors.InputError{Field: "title", Err: pkgerrors.ErrTitleRequired}
	}
	if r.CalendarType != "" && r.CalendarType != CalendarSolar && r.CalendarType != CalendarLunar {
		return &pkgerrors.InputError{Field: "calendar_type", Err: fmt.Errorf("%w: %q", pkgerrors.ErrOutOfRange, r.CalendarType)}
	}
	if r.Month != nil && (*r.Month < 1 || *r.Month > 12) {
		return &pkgerrors.InputError{Field: "month", Err: fmt.Errorf("%w: %d", pkgerrors.ErrOutOfRange, *r.Month)}
	}
	if r.Day != nil && (*r.Day < 1 || *r.Day > 31) {
		return &pkgerrors.InputError{Field: "day", Err: fmt.Errorf("%w: %d", pkgerrors.ErrOutOfRange, *r.Day)}
	}
	if r.Hour < 0 || r.Hour > 23 {
		return &pkgerrors.InputError{Field: "hour", Err: fmt.Errorf("%w: %d", pkgerrors.ErrOutOfRange, r.Hour)}
	}
	if r.Minute < 0 || r.Minute > 59 {
		return &pkgerrors.InputError{Field: "minute", Err: fmt.Errorf("%w: %d", pkgerrors.ErrOutOfRange, r.Minute)}
	}
	return nil
}

var chatNameSeparators = regexp.MustCompile(`[、,，\s]+`)

// SplitChatNames splits free text on 、 , ， and whitespace, dropping blanks.
func SplitChatNames(input string) []string {
	var names []string
	for _, part := range chatNameSeparators.Split(input, -1) {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// JoinChatNames is the inverse of SplitChatNames for editing.
func JoinChatNames(names []string) string {
	return strings.Join(names, "、")
}

// FormatSchedule renders when a reminder fires, e.g. "公历 3月8号 08:00" or
// "农历 每月每天 21:30".
func FormatSchedule(r *Reminder) string {
	month := "每月"
	if r.Month != nil {
		month = fmt.Sprintf("%d月", *r.Month)
	}
	day := "每天"
	if r.Day != nil {
		day = fmt.Sprintf("%d号", *r.Day)
	}
	return fmt.Sprintf("%s %s%s %02d:%02d", r.CalendarType.Label(), month, day, r.Hour, r.Minute)
}
