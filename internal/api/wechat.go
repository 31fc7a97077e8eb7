package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pkgerrors "wxadmin/pkg/errors"
)

const (
	pathWeChatStatus = "/wechat_status"
	pathWeChatLogin  = "/wechat_login"
	pathWeChatQRCode = "/wechat_qrcode"
)

// wechatData covers both shapes the service has produced: the fields directly
// under data, or one level deeper under data.data.
type wechatData struct {
	Status       string      `json:"status"`
	QRCodeBase64 string      `json:"qrcode_base64"`
	Data         *wechatData `json:"data"`
}

func (d *wechatData) status() string {
	if d == nil {
		return ""
	}
	if d.Status != "" {
		return d.Status
	}
	return d.Data.status()
}

func (d *wechatData) qrcode() string {
	if d == nil {
		return ""
	}
	if d.QRCodeBase64 != "" {
		return d.QRCodeBase64
	}
	return d.Data.qrcode()
}

func decodeWeChatData(endpoint string, raw json.RawMessage) (*wechatData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var d wechatData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &pkgerrors.ProtocolError{Endpoint: endpoint, Err: pkgerrors.ErrMalformedBody}
	}
	return &d, nil
}

// WeChatStatus queries the messaging account's connection status. A success
// envelope without a status value yields an empty Status, not an error.
func (c *Client) WeChatStatus(ctx context.Context) (*WeChatStatus, error) {
	body, err := c.do(ctx, http.MethodGet, pathWeChatStatus, nil)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(pathWeChatStatus, body)
	if err != nil {
		return nil, rejected(err, pkgerrors.ErrStatusCheckFailed)
	}
	data, err := decodeWeChatData(pathWeChatStatus, env.Data)
	if err != nil {
		return nil, err
	}
	return &WeChatStatus{Status: data.status()}, nil
}

// WeChatLogin asks the service to start a login. The service signals rejection
// through a non-success envelope status, returned as a ProtocolError.
func (c *Client) WeChatLogin(ctx context.Context) error {
	body, err := c.do(ctx, http.MethodPost, pathWeChatLogin, nil)
	if err != nil {
		return err
	}
	_, err = decodeEnvelope(pathWeChatLogin, body)
	return rejected(err, pkgerrors.ErrLoginRejected)
}

// rejected tags a non-success envelope error with reason, keeping the
// original cause reachable through errors.Is.
func rejected(err, reason error) error {
	var pe *pkgerrors.ProtocolError
	if !errors.As(err, &pe) || !errors.Is(pe.Err, pkgerrors.ErrUnexpectedStatus) {
		return err
	}
	return &pkgerrors.ProtocolError{
		Endpoint: pe.Endpoint,
		Status:   pe.Status,
		Message:  pe.Message,
		Err:      fmt.Errorf("%w: %w", reason, pe.Err),
	}
}

// WeChatQRCode fetches a login QR code. An accepted response without a payload
// is a ProtocolError wrapping ErrEmptyQRCode.
func (c *Client) WeChatQRCode(ctx context.Context) (*WeChatQRCode, error) {
	body, err := c.do(ctx, http.MethodGet, pathWeChatQRCode, nil)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(pathWeChatQRCode, body)
	if err != nil {
		return nil, err
	}
	data, err := decodeWeChatData(pathWeChatQRCode, env.Data)
	if err != nil {
		return nil, err
	}
	payload := data.qrcode()
	if payload == "" {
		return nil, &pkgerrors.ProtocolError{Endpoint: pathWeChatQRCode, Status: env.Status, Err: pkgerrors.ErrEmptyQRCode}
	}
	return &WeChatQRCode{Base64: payload}, nil
}
