package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type Request struct {
	Type      string
	Source    string
	BatchSize int
	// Operator is stored with the run record.
	Operator string
}

type Result struct {
	Type     string            `json:"type"`
	Source   string            `json:"source"`
	Format   string            `json:"format"`
	Rows     int               `json:"rows"`
	Inserted int               `json:"inserted"`
	Updated  int               `json:"updated"`
	Rejected []models.RowIssue `json:"rejected"`
	SHA256   string            `json:"sha256"`
	Duration time.Duration     `json:"duration_ns"`
}

// ErrUnknownType is returned for an import type with no processor.
var ErrUnknownType = errors.New("unknown import type")

// SourceError reports a source that could not be opened.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string { return fmt.Sprintf("open %s: %v", e.Source, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// Service streams a roster or fee sheet into a processor batch by batch.
type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	DefaultBS  int
	// Stats is invalidated after an import changes any row.
	Stats ports.StatsCache
	// Runs keeps an audit record per import when set.
	Runs   ports.ImportLog
	logger *logrus.Logger
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, defaultBatch int, logger *logrus.Logger) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 500
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{Opener: opener, Processors: registry, DefaultBS: defaultBatch, logger: logger}
}

// Types lists the registered processor names.
func (s *Service) Types() []string {
	out := make([]string, 0, len(s.Processors))
	for k := range s.Processors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	proc, ok := s.Processors[req.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownType, req.Type)
	}

	res, meta, err := s.run(ctx, proc, req)
	s.record(ctx, req, res, meta, err)
	return res, err
}

func (s *Service) run(ctx context.Context, proc ports.Processor, req Request) (Result, ports.Meta, error) {
	t0 := time.Now()
	log := s.logger.WithFields(logrus.Fields{"type": req.Type, "source": req.Source})
	res := Result{Type: req.Type, Source: req.Source, Rejected: []models.RowIssue{}}

	rc, meta, err := s.Opener.Open(ctx, req.Source)
	if err != nil {
		log.WithError(err).Error("[IMP] open failed")
		return res, meta, &SourceError{Source: req.Source, Err: err}
	}
	defer rc.Close()

	hasher := sha256.New()
	br := bufio.NewReader(io.TeeReader(rc, hasher))

	res.Format = detectFormat(req.Source, meta.ContentType)
	if res.Format == "" {
		res.Format = sniffFormat(br)
	}
	log = log.WithFields(logrus.Fields{"format": res.Format, "origin": meta.Source, "size": meta.Size})
	log.Info("[IMP] start")

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}
	sink := &batchSink{ctx: ctx, proc: proc, size: batchSize, res: &res, log: log}

	switch res.Format {
	case FormatXLSX:
		err = streamXLSXFirstSheet(br, sink)
	default:
		res.Format = FormatCSV
		err = streamCSV(br, sink)
	}
	if err == nil {
		err = sink.flush()
	}
	if err != nil {
		log.WithError(err).WithField("rows", res.Rows).Error("[IMP] aborted")
		return res, meta, err
	}

	if s.Stats != nil && res.Inserted+res.Updated > 0 {
		if err := s.Stats.Invalidate(ctx); err != nil {
			log.WithError(err).Warn("[IMP] stats cache invalidation failed")
		}
	}

	// Drain so the checksum covers the whole file.
	_, _ = io.Copy(io.Discard, br)
	res.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	res.Duration = time.Since(t0)

	log.WithFields(logrus.Fields{
		"rows":     res.Rows,
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"rejected": len(res.Rejected),
		"duration": res.Duration,
	}).Info("[IMP] done")
	return res, meta, nil
}

// record stores the run in the audit log. A failure here never fails the import.
func (s *Service) record(ctx context.Context, req Request, res Result, meta ports.Meta, runErr error) {
	if s.Runs == nil {
		return
	}
	run := models.ImportRun{
		Type:      req.Type,
		Source:    req.Source,
		Origin:    meta.Source,
		Format:    res.Format,
		SizeBytes: meta.Size,
		SHA256:    res.SHA256,
		Rows:      res.Rows,
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Rejected:  res.Rejected,
		Status:    models.ImportDone,
		CreatedBy: req.Operator,
	}
	if runErr != nil {
		run.Status = models.ImportFailed
		run.Error = runErr.Error()
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Runs.Record(recCtx, run); err != nil {
		s.logger.WithError(err).WithField("type", req.Type).Warn("[IMP] import record not stored")
	}
}

type batchSink struct {
	ctx     context.Context
	proc    ports.Processor
	size    int
	res     *Result
	log     *logrus.Entry
	pending []ports.Row
	batches int
}

func (b *batchSink) add(row ports.Row) error {
	b.pending = append(b.pending, row)
	if len(b.pending) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batchSink) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	b.batches++
	b.log.WithFields(logrus.Fields{"batch": b.batches, "size": len(b.pending)}).Debug("[IMP] send batch")

	out, err := b.proc.ProcessBatch(b.ctx, b.pending)
	if err != nil {
		return fmt.Errorf("batch %d: %w", b.batches, err)
	}
	b.res.Rows += len(b.pending)
	b.res.Inserted += out.Inserted
	b.res.Updated += out.Updated
	b.res.Rejected = append(b.res.Rejected, out.Rejected...)
	b.pending = b.pending[:0]
	return nil
}

func streamCSV(r io.Reader, sink *batchSink) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	header = normalizeHeader(header)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return err
			}
			sink.res.Rejected = append(sink.res.Rejected, models.RowIssue{Line: pe.StartLine, Reason: pe.Err.Error()})
			continue
		}
		// The reader skips empty lines, so take the position from it.
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		if err := sink.add(ports.Row{Line: line, Values: toMap(header, record)}); err != nil {
			return err
		}
	}
}

func streamXLSXFirstSheet(r io.Reader, sink *batchSink) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("xlsx open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Error()
	}
	header, err := rows.Columns()
	if err != nil {
		return err
	}
	header = normalizeHeader(header)

	line := 1
	for rows.Next() {
		line++
		cols, err := rows.Columns()
		if err != nil {
			sink.res.Rejected = append(sink.res.Rejected, models.RowIssue{Line: line, Reason: err.Error()})
			continue
		}
		if blank(cols) {
			continue
		}
		if err := sink.add(ports.Row{Line: line, Values: toMap(header, cols)}); err != nil {
			return err
		}
	}
	return rows.Error()
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		out[i] = strings.Join(strings.Fields(h), "_")
	}
	return out
}

func toMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, key := range header {
		if key == "" {
			continue
		}
		val := ""
		if i < len(row) {
			val = row[i]
		}
		m[key] = strings.TrimSpace(val)
	}
	return m
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func detectFormat(source, contentType string) string {
	p := source
	if u, err := url.Parse(source); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return FormatXLSX
	case "csv":
		return FormatCSV
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV
	}
	return ""
}

var zipMagic = []byte("PK\x03\x04")

// sniffFormat tells an xlsx (zip) container from text without consuming input.
func sniffFormat(br *bufio.Reader) string {
	head, _ := br.Peek(len(zipMagic))
	if bytes.Equal(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}
