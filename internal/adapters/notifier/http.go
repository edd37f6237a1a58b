package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/ports"
)

// maxResponseBody caps how much of a gateway reply is read.
const maxResponseBody = 64 << 10

// HTTPNotifier posts messages to a WhatsApp-style gateway that answers with
// {"status": bool, "reason": "..."}.
type HTTPNotifier struct {
	Client *http.Client
	URL    string
	Token  string
	logger *logrus.Logger
}

var _ ports.Notifier = (*HTTPNotifier)(nil)

func NewHTTPNotifier(cli *http.Client, url, token string, timeout time.Duration, logger *logrus.Logger) *HTTPNotifier {
	if cli == nil {
		cli = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPNotifier{Client: cli, URL: url, Token: token, logger: logger}
}

type sendRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status bool   `json:"status"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func (n *HTTPNotifier) Send(ctx context.Context, phone, message string) (ports.SendResult, error) {
	if n.URL == "" {
		return ports.SendResult{}, errors.New("notifier url not configured")
	}
	log := n.logger.WithField("target", phone)
	log.Debug("[NOTIFIER][HTTP][START]")

	body, err := json.Marshal(sendRequest{Target: phone, Message: message})
	if err != nil {
		return ports.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("[NOTIFIER][HTTP][ERR] build request")
		return ports.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		req.Header.Set("Authorization", n.Token)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		log.WithError(err).Warn("[NOTIFIER][HTTP][ERR] do request")
		return ports.SendResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(raw)}).Warn("[NOTIFIER][HTTP][ERR] non-2xx")
		return ports.SendResult{}, fmt.Errorf("gateway http status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ports.SendResult{}, fmt.Errorf("decode gateway response: %w", err)
	}

	detail := out.Reason
	if detail == "" {
		detail = out.Detail
	}
	log.WithFields(logrus.Fields{"success": out.Status, "detail": detail}).Debug("[NOTIFIER][HTTP][OK]")
	return ports.SendResult{Success: out.Status, Detail: detail}, nil
}
