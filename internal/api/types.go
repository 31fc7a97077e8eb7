package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ListEncoding tags how a string list travelled on the wire.
type ListEncoding int

const (
	// RawList is a native JSON array: ["a","b"].
	RawList ListEncoding = iota
	// EncodedList is a JSON array serialized into a string: "[\"a\",\"b\"]".
	EncodedList
)

// StringList is a list of names that the service sometimes sends as a native
// array and sometimes as a JSON-encoded string. It is normalized here so the
// rest of the client only sees Names.
type StringList struct {
	Encoding ListEncoding
	Names    []string
}

// Raw returns a list that marshals as a native array.
func Raw(names ...string) StringList {
	return StringList{Encoding: RawList, Names: names}
}

// Encoded returns a list that marshals as a JSON-encoded string.
func Encoded(names ...string) StringList {
	return StringList{Encoding: EncodedList, Names: names}
}

// Len returns the number of names.
func (l StringList) Len() int { return len(l.Names) }

// Contains reports whether name is in the list.
func (l StringList) Contains(name string) bool {
	for _, n := range l.Names {
		if n == name {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts null, an array, or a string holding an array. A string
// that does not decode as an array yields an empty list.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	l.Names = nil

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		l.Encoding = RawList
		return nil

	case data[0] == '[':
		l.Encoding = RawList
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("decode name list: %w", err)
		}
		l.Names = names
		return nil

	case data[0] == '"':
		l.Encoding = EncodedList
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode name list: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		var names []string
		if err := json.Unmarshal([]byte(s), &names); err != nil {
			return nil
		}
		l.Names = names
		return nil
	}

	return fmt.Errorf("decode name list: unexpected JSON %s", truncateBody(data, 40))
}

// MarshalJSON writes the list in the encoding it carries.
func (l StringList) MarshalJSON() ([]byte, error) {
	names := l.Names
	if names == nil {
		names = []string{}
	}
	arr, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	if l.Encoding == EncodedList {
		return json.Marshal(string(arr))
	}
	return arr, nil
}

// Flag is a boolean the service may send as true/false or 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1", `"1"`, `"true"`:
		*f = true
	case "false", "0", `"0"`, `"false"`, "null", `""`:
		*f = false
	default:
		return fmt.Errorf("decode flag: unexpected JSON %s", truncateBody(data, 20))
	}
	return nil
}

// CalendarType selects how month/day are interpreted.
type CalendarType string

const (
	CalendarSolar CalendarType = "solar"
	CalendarLunar CalendarType = "lunar"
)

// Label returns the zh-CN label used in lists.
func (c CalendarType) Label() string {
	if c == CalendarLunar {
		return "农历"
	}
	return "公历"
}

// Reminder is a scheduled message sent to one or more chats.
type Reminder struct {
	ID           int64        `json:"id,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	CalendarType CalendarType `json:"calendar_type"`
	// Month is nil for "every month".
	Month *int `json:"month"`
	// Day is nil for "every day".
	Day       *int       `json:"day"`
	Hour      int        `json:"hour"`
	Minute    int        `json:"minute"`
	Enabled   Flag       `json:"enabled"`
	ChatNames StringList `json:"chatnames"`
}

// Processor is a named business-logic handler the service can attach to a chat.
type Processor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Label is the description with a trailing "处理器" trimmed, or the name when
// there is no description.
func (p Processor) Label() string {
	d := strings.TrimSuffix(p.Description, "处理器")
	if d != "" {
		return d
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// ChatProcessors assigns processors to one chat.
type ChatProcessors struct {
	ID         string     `json:"id,omitempty"`
	ChatName   string     `json:"chat_name"`
	Processors StringList `json:"processors"`
}

// WeChatStatus is the decoded status-query result.
type WeChatStatus struct {
	// Status is the raw value reported by the service, "" when absent.
	Status string
}

// WeChatQRCode is the decoded QR-issuance result.
type WeChatQRCode struct {
	// Base64 is the raster payload, possibly a data: URI.
	Base64 string
}
