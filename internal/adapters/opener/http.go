package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/ports"
)

type HTTPOpener struct {
	Client *http.Client
	logger *logrus.Logger
}

func NewHTTPOpener(cli *http.Client, logger *logrus.Logger) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPOpener{Client: cli, logger: logger}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	log := h.logger.WithField("url", url)
	log.Debug("[OPENER][HTTP] start")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		log.WithError(err).Warn("[OPENER][HTTP] request failed")
		return nil, ports.Meta{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		log.WithField("status", resp.StatusCode).Warn("[OPENER][HTTP] unexpected status")
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	ct := resp.Header.Get("Content-Type")
	log.WithFields(logrus.Fields{"content_type": ct, "size": size}).Debug("[OPENER][HTTP] ok")
	return resp.Body, ports.Meta{
		Source:      "https",
		ContentType: ct,
		Size:        size,
	}, nil
}
