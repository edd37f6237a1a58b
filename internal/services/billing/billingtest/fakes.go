package billingtest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type SentMessage struct {
	Phone   string
	Message string
}

// Notifier records messages. Err or a non-nil Result overrides success, and
// Delay blocks until the context ends.
type Notifier struct {
	mu     sync.Mutex
	Err    error
	Result *ports.SendResult
	Delay  time.Duration
	sent   []SentMessage
}

func (n *Notifier) Send(ctx context.Context, phone, message string) (ports.SendResult, error) {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ports.SendResult{}, ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return ports.SendResult{}, n.Err
	}
	n.sent = append(n.sent, SentMessage{Phone: phone, Message: message})
	if n.Result != nil {
		return *n.Result, nil
	}
	return ports.SendResult{Success: true}, nil
}

func (n *Notifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.sent...)
}

type NotificationLog struct {
	mu       sync.Mutex
	attempts []models.NotificationAttempt
}

func (l *NotificationLog) Record(_ context.Context, a models.NotificationAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
	return nil
}

func (l *NotificationLog) ListFailed(_ context.Context, limit int64) ([]models.NotificationAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.NotificationAttempt
	for i := len(l.attempts) - 1; i >= 0; i-- {
		if l.attempts[i].Status != models.NotificationFailed {
			continue
		}
		out = append(out, l.attempts[i])
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (l *NotificationLog) Attempts() []models.NotificationAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.NotificationAttempt(nil), l.attempts...)
}

type StatsCache struct {
	mu            sync.Mutex
	byYear        map[int][]models.MonthlyStat
	Invalidations int
}

func (c *StatsCache) GetMonthly(_ context.Context, year int) ([]models.MonthlyStat, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byYear[year]
	return s, ok, nil
}

func (c *StatsCache) SetMonthly(_ context.Context, year int, stats []models.MonthlyStat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byYear == nil {
		c.byYear = map[int][]models.MonthlyStat{}
	}
	c.byYear[year] = stats
	return nil
}

func (c *StatsCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byYear = nil
	c.Invalidations++
	return nil
}

// ReportStore keeps uploaded reports in memory.
type ReportStore struct {
	mu         sync.Mutex
	Err        error
	PresignErr error
	objects    map[string][]byte
}

func (s *ReportStore) Put(_ context.Context, name, _ string, r io.Reader, _ int64) (models.StoredReport, error) {
	if s.Err != nil {
		return models.StoredReport{}, s.Err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return models.StoredReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	key := fmt.Sprintf("reports/%d-%s", len(s.objects)+1, name)
	s.objects[key] = b
	return models.StoredReport{Bucket: "test", Key: key, Path: "s3://test/" + key, Size: int64(len(b))}, nil
}

func (s *ReportStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.PresignErr != nil {
		return "", s.PresignErr
	}
	return fmt.Sprintf("https://storage.test/%s?ttl=%s", key, ttl), nil
}

func (s *ReportStore) Object(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}
