package imports

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

const ImportRecordsCollection = "import_records"

// Rejected rows beyond this are counted but not stored.
const maxStoredIssues = 200

type Issue struct {
	Line   int    `bson:"line"`
	Reason string `bson:"reason"`
}

type Record struct {
	ID            string    `bson:"_id"`
	Type          string    `bson:"type"`
	Source        string    `bson:"source"`
	Origin        string    `bson:"origin,omitempty"`
	Format        string    `bson:"format,omitempty"`
	SizeBytes     int64     `bson:"size_bytes"`
	SHA256        string    `bson:"sha256,omitempty"`
	Count         int       `bson:"count"`
	Inserted      int       `bson:"inserted"`
	Updated       int       `bson:"updated"`
	RejectedCount int       `bson:"rejected_count"`
	Rejected      []Issue   `bson:"rejected,omitempty"`
	Status        string    `bson:"status"`
	Errors        string    `bson:"errors,omitempty"`
	CreatedBy     string    `bson:"created_by,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

type Log struct {
	m *mg.Mongo
}

var _ ports.ImportLog = (*Log)(nil)

func NewLog(m *mg.Mongo) *Log {
	return &Log{m: m}
}

func (l *Log) collection() (*mongo.Collection, error) {
	if l == nil || l.m == nil || l.m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return l.m.Database.Collection(ImportRecordsCollection), nil
}

func (l *Log) Record(ctx context.Context, run models.ImportRun) error {
	coll, err := l.collection()
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, toRecord(run), options.InsertOne())
	return err
}

// List returns runs newest first together with the total count.
func (l *Log) List(ctx context.Context, limit, skip int64) ([]models.ImportRun, int64, error) {
	coll, err := l.collection()
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}

	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find import records: %w", err)
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, 0, err
	}

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		total = int64(len(recs))
	}

	out := make([]models.ImportRun, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.run())
	}
	return out, total, nil
}

func toRecord(run models.ImportRun) Record {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	issues := run.Rejected
	if len(issues) > maxStoredIssues {
		issues = issues[:maxStoredIssues]
	}
	stored := make([]Issue, 0, len(issues))
	for _, i := range issues {
		stored = append(stored, Issue{Line: i.Line, Reason: i.Reason})
	}

	return Record{
		ID:            run.ID,
		Type:          run.Type,
		Source:        run.Source,
		Origin:        run.Origin,
		Format:        run.Format,
		SizeBytes:     run.SizeBytes,
		SHA256:        run.SHA256,
		Count:         run.Rows,
		Inserted:      run.Inserted,
		Updated:       run.Updated,
		RejectedCount: len(run.Rejected),
		Rejected:      stored,
		Status:        string(run.Status),
		Errors:        run.Error,
		CreatedBy:     run.CreatedBy,
		CreatedAt:     run.CreatedAt,
	}
}

func (r Record) run() models.ImportRun {
	issues := make([]models.RowIssue, 0, len(r.Rejected))
	for _, i := range r.Rejected {
		issues = append(issues, models.RowIssue{Line: i.Line, Reason: i.Reason})
	}
	return models.ImportRun{
		ID:        r.ID,
		Type:      r.Type,
		Source:    r.Source,
		Origin:    r.Origin,
		Format:    r.Format,
		SizeBytes: r.SizeBytes,
		SHA256:    r.SHA256,
		Rows:      r.Count,
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Rejected:  issues,
		Status:    models.ImportStatus(r.Status),
		Error:     r.Errors,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}
