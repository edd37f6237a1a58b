package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mg "tuition_billing/internal/config/connections/mongo"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

const NotificationLogsCollection = "notification_logs"

const defaultFailedLimit = 50

// Item is the stored form of one delivery attempt.
type Item struct {
	ID            string    `bson:"_id"`
	TransactionID int64     `bson:"transaction_id"`
	StudentID     int64     `bson:"student_id"`
	Phone         string    `bson:"phone"`
	Message       string    `bson:"message"`
	Decision      string    `bson:"decision"`
	Status        string    `bson:"status"`
	Errors        string    `bson:"errors,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

type Log struct {
	m *mg.Mongo
}

var _ ports.NotificationLog = (*Log)(nil)

func NewLog(m *mg.Mongo) *Log {
	return &Log{m: m}
}

func (l *Log) collection() (*mongo.Collection, error) {
	if l == nil || l.m == nil || l.m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return l.m.Database.Collection(NotificationLogsCollection), nil
}

func (l *Log) Record(ctx context.Context, attempt models.NotificationAttempt) error {
	coll, err := l.collection()
	if err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, toDoc(attempt), options.InsertOne())
	return err
}

// ListFailed returns the most recent failed attempts, newest first.
func (l *Log) ListFailed(ctx context.Context, limit int64) ([]models.NotificationAttempt, error) {
	coll, err := l.collection()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFailedLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := coll.Find(ctx, bson.M{"status": string(models.NotificationFailed)}, opts)
	if err != nil {
		return nil, fmt.Errorf("find failed notifications: %w", err)
	}
	defer cur.Close(ctx)

	var items []Item
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}

	out := make([]models.NotificationAttempt, 0, len(items))
	for _, it := range items {
		out = append(out, it.attempt())
	}
	return out, nil
}

func toDoc(a models.NotificationAttempt) bson.D {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	return bson.D{
		{Key: "_id", Value: a.ID},
		{Key: "transaction_id", Value: a.TransactionID},
		{Key: "student_id", Value: a.StudentID},
		{Key: "phone", Value: a.Phone},
		{Key: "message", Value: a.Message},
		{Key: "decision", Value: string(a.Decision)},
		{Key: "status", Value: string(a.Status)},
		{Key: "errors", Value: a.Error},
		{Key: "created_at", Value: a.CreatedAt},
	}
}

func (it Item) attempt() models.NotificationAttempt {
	return models.NotificationAttempt{
		ID:            it.ID,
		TransactionID: it.TransactionID,
		StudentID:     it.StudentID,
		Phone:         it.Phone,
		Message:       it.Message,
		Decision:      models.TransactionStatus(it.Decision),
		Status:        models.NotificationStatus(it.Status),
		Error:         it.Errors,
		CreatedAt:     it.CreatedAt,
	}
}
