package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	pkgerrors "wxadmin/pkg/errors"
)

// StatusSuccess is the envelope status the service uses for accepted requests.
const StatusSuccess = "success"

// Envelope is the {status, message, data} wrapper the service puts around
// most responses.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the service accepted the request.
func (e *Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// decodeEnvelope parses body as an envelope. A non-success status is returned
// as a ProtocolError together with the parsed envelope so callers can still
// inspect data.
func decodeEnvelope(endpoint string, body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &pkgerrors.ProtocolError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", pkgerrors.ErrMalformedBody, err)}
	}
	if !env.OK() {
		return &env, &pkgerrors.ProtocolError{
			Endpoint: endpoint,
			Status:   env.Status,
			Message:  env.Message,
			Err:      pkgerrors.ErrUnexpectedStatus,
		}
	}
	return &env, nil
}

// decodeList accepts either a bare JSON array or an envelope whose data is an
// array. The processors endpoints return the former, reminders the latter.
func decodeList(endpoint string, body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return &pkgerrors.ProtocolError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", pkgerrors.ErrMalformedBody, err)}
		}
		return nil
	}

	env, err := decodeEnvelope(endpoint, trimmed)
	if err != nil {
		return err
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &pkgerrors.ProtocolError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", pkgerrors.ErrMalformedBody, err)}
	}
	return nil
}

// Result is the outcome of a mutation: the server's message on success.
type Result struct {
	Message string
}

func decodeResult(endpoint string, body []byte) (*Result, error) {
	env, err := decodeEnvelope(endpoint, body)
	if err != nil {
		return nil, err
	}
	return &Result{Message: env.Message}, nil
}
