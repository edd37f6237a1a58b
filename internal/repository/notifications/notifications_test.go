package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tuition_billing/internal/models"
)

func TestToDoc_RoundTripsThroughItem(t *testing.T) {
	at := time.Date(2025, time.March, 1, 8, 30, 0, 0, time.UTC)
	in := models.NotificationAttempt{
		TransactionID: 7,
		StudentID:     3,
		Phone:         "6281234567890",
		Message:       "Yth. Bapak/Ibu",
		Decision:      models.StatusRejected,
		Status:        models.NotificationFailed,
		Error:         "gateway timeout",
		CreatedAt:     at,
	}

	raw, err := bson.Marshal(toDoc(in))
	require.NoError(t, err)

	var it Item
	require.NoError(t, bson.Unmarshal(raw, &it))
	out := it.attempt()

	assert.NotEmpty(t, out.ID, "an id is assigned on write")
	out.ID = ""
	assert.Equal(t, in, out)
}

func TestToDoc_KeepsExistingID(t *testing.T) {
	doc := toDoc(models.NotificationAttempt{ID: "fixed"})
	assert.Equal(t, "_id", doc[0].Key)
	assert.Equal(t, "fixed", doc[0].Value)

	created := doc[len(doc)-1]
	assert.Equal(t, "created_at", created.Key)
	assert.False(t, created.Value.(time.Time).IsZero())
}

func TestLog_WithoutConnection(t *testing.T) {
	l := NewLog(nil)

	err := l.Record(context.Background(), models.NotificationAttempt{})
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)

	_, err = l.ListFailed(context.Background(), 10)
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)
}
