// Package whatsapp sends messages through a WhatsApp Web gateway process.
//
// The gateway owns the browser session (login, QR scan, tab lifecycle) and
// exposes a small HTTP API; this adapter only does the POST and interprets
// the result. Keeping the automation out-of-process means a wedged browser
// can be restarted without touching the scheduler.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "waremind/pkg/logx"
)

type Config struct {
	// GatewayURL is the base URL of the gateway, e.g. "http://127.0.0.1:8077".
	GatewayURL string
	// Timeout bounds one send round-trip, browser typing included.
	Timeout time.Duration

	// MessagePrefix/MessageSuffix are applied to every outgoing payload.
	MessagePrefix string
	MessageSuffix string
}

type Adapter struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, errors.New("whatsapp gateway url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// The gateway drives a real browser; sends routinely take many seconds.
		timeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (a *Adapter) Send(ctx context.Context, address, text string) error {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(address)
	payload := sendRequest{
		Phone:   phone,
		Message: a.cfg.MessagePrefix + text + a.cfg.MessageSuffix,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encode send request: %w", err)
	}

	url := strings.TrimRight(a.cfg.GatewayURL, "/") + "/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("whatsapp: gateway returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("whatsapp: bad gateway response: %w", err)
	}
	if !out.OK {
		msg := out.Error
		if msg == "" {
			msg = "send rejected with no detail"
		}
		return fmt.Errorf("whatsapp: %s", msg)
	}

	a.log.Debug("message handed to gateway", logx.String("phone", phone))
	return nil
}

func (a *Adapter) Close(ctx context.Context) error {
	a.http.CloseIdleConnections()
	return nil
}
