package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "wxadmin/pkg/errors"
)

const (
	pathProcessors     = "/processors"
	pathChatProcessors = "/chatname_processors"
)

// ListProcessors returns the processors the service knows about.
func (c *Client) ListProcessors(ctx context.Context) ([]*Processor, error) {
	body, err := c.do(ctx, http.MethodGet, pathProcessors, nil)
	if err != nil {
		return nil, err
	}
	var processors []*Processor
	if err := decodeList(pathProcessors, body, &processors); err != nil {
		return nil, err
	}
	return processors, nil
}

// ListChatProcessors returns every chat's processor assignment.
func (c *Client) ListChatProcessors(ctx context.Context) ([]*ChatProcessors, error) {
	body, err := c.do(ctx, http.MethodGet, pathChatProcessors, nil)
	if err != nil {
		return nil, err
	}
	var items []*ChatProcessors
	if err := decodeList(pathChatProcessors, body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddChat registers chatName with an empty processor set.
func (c *Client) AddChat(ctx context.Context, chatName string) (*Result, error) {
	chatName = strings.TrimSpace(chatName)
	if chatName == "" {
		return nil, &pkgerrors.InputError{Field: "chat_name", Err: pkgerrors.ErrChatNameRequired}
	}
	body, err := c.do(ctx, http.MethodPost, pathChatProcessors, map[string]string{"chat_name": chatName})
	if err != nil {
		return nil, err
	}
	return decodeResult(pathChatProcessors, body)
}

// SetChatProcessors replaces the processor set assigned to chatName.
func (c *Client) SetChatProcessors(ctx context.Context, chatName string, processors []string) (*Result, error) {
	if strings.TrimSpace(chatName) == "" {
		return nil, &pkgerrors.InputError{Field: "chat_name", Err: pkgerrors.ErrChatNameRequired}
	}
	path := pathChatProcessors + "/" + url.PathEscape(chatName)
	payload := struct {
		Processors StringList `json:"processors"`
	}{Processors: Raw(processors...)}

	body, err := c.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return nil, err
	}
	return decodeResult(path, body)
}

// DeleteChat removes chatName's assignment.
func (c *Client) DeleteChat(ctx context.Context, chatName string) (*Result, error) {
	if strings.TrimSpace(chatName) == "" {
		return nil, &pkgerrors.InputError{Field: "chat_name", Err: pkgerrors.ErrChatNameRequired}
	}
	path := pathChatProcessors + "/" + url.PathEscape(chatName)
	body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeResult(path, body)
}

// ProcessorLabel resolves id against processors, falling back to the id itself.
func ProcessorLabel(processors []*Processor, id string) string {
	for _, p := range processors {
		if p.ID == id {
			return p.Label()
		}
	}
	return id
}
