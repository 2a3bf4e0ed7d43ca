// Package exports runs asynchronous exports of the committed container
// graph, writing artifacts to a blob store and tracking per-request status.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"containercore/internal/core"
	"containercore/internal/infra/blob"
	"containercore/pkg/domain"
)

// Format names an artifact encoding produced by an export run.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// KnownFormat reports whether f is a supported export format.
func KnownFormat(f Format) bool {
	return f == FormatJSON || f == FormatCSV
}

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures a stored export artifact.
type Artifact struct {
	ID          string    `json:"id"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Prefix      string     `json:"prefix,omitempty"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	out.Formats = append([]Format(nil), r.Formats...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Input represents an enqueue request for the worker.
type Input struct {
	Prefix      string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Scheduler queues export requests and exposes status.
type Scheduler interface {
	EnqueueExport(ctx context.Context, input Input) (Record, error)
	GetExport(id string) (Record, bool)
	ListExports() []Record
}

// ContainerSource supplies the committed containers an export reads.
type ContainerSource interface {
	ListContainers() []domain.Container
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LogAudit writes audit entries through a core.Logger.
type LogAudit struct {
	logger core.Logger
}

// NewLogAudit returns an AuditLogger backed by logger.
func NewLogAudit(logger core.Logger) *LogAudit { return &LogAudit{logger: logger} }

func (a *LogAudit) Record(_ context.Context, entry AuditEntry) {
	if a.logger == nil {
		return
	}
	a.logger.Info("export audit", "id", entry.ID, "action", entry.Action, "actor", entry.Actor, "status", string(entry.Status), "note", entry.Note)
}

// Worker executes container exports asynchronously.
type Worker struct {
	source ContainerSource
	store  blob.Store
	audit  AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input Input
}

// NewWorker constructs an export worker reading containers from source and
// writing artifacts to store.
func NewWorker(source ContainerSource, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

var _ Scheduler = (*Worker)(nil)

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export source not configured")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if !KnownFormat(format) {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Prefix:      input.Prefix,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, StatusQueued, "")

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		w.fail(id, "export queue full")
		return Record{}, fmt.Errorf("export queue full")
	}

	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// ListExports returns snapshots of all known export records, newest first.
func (w *Worker) ListExports() []Record {
	w.mu.RLock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, StatusRunning, "")

	containers := w.source.ListContainers()
	if task.input.Prefix != "" {
		filtered := containers[:0]
		for _, c := range containers {
			if len(c.ID) >= len(task.input.Prefix) && c.ID[:len(task.input.Prefix)] == task.input.Prefix {
				filtered = append(filtered, c)
			}
		}
		containers = filtered
	}

	record, ok := w.GetExport(task.id)
	if !ok {
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, payload, err := renderArtifact(format, containers)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		if w.store != nil {
			key := fmt.Sprintf("exports/%s/%s.%s", task.id, artifact.ID, format)
			info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
				ContentType: artifact.ContentType,
				Metadata:    map[string]string{"export_id": task.id, "format": string(format)},
			})
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			artifact.URL = info.URL
			if info.Size > 0 {
				artifact.SizeBytes = info.Size
			}
		}
		artifacts = append(artifacts, artifact)
	}

	w.complete(task.id, artifacts)
}

func renderArtifact(format Format, containers []domain.Container) (Artifact, []byte, error) {
	now := time.Now().UTC()
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(map[string]any{"containers": containers, "count": len(containers)})
		if err != nil {
			return Artifact{}, nil, fmt.Errorf("marshal json export: %w", err)
		}
		return Artifact{
			ID:          uuid.NewString(),
			Format:      FormatJSON,
			ContentType: "application/json",
			SizeBytes:   int64(len(payload)),
			CreatedAt:   now,
		}, payload, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write([]string{"id", "name", "children", "relations", "field_count"}); err != nil {
			return Artifact{}, nil, err
		}
		for _, c := range containers {
			relations := make([]string, 0, len(c.Relations))
			for _, rel := range c.Relations {
				relations = append(relations, rel.Label+":"+rel.TargetID)
			}
			row := []string{
				c.ID,
				c.Name,
				joinComma(c.Children),
				joinComma(relations),
				strconv.Itoa(len(c.Fields)),
			}
			if err := writer.Write(row); err != nil {
				return Artifact{}, nil, err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return Artifact{}, nil, err
		}
		payload := buf.Bytes()
		return Artifact{
			ID:          uuid.NewString(),
			Format:      FormatCSV,
			ContentType: "text/csv",
			SizeBytes:   int64(len(payload)),
			CreatedAt:   now,
		}, payload, nil
	default:
		return Artifact{}, nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, status, message)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusSucceeded, "")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusFailed, reason)
}

func (w *Worker) recordAudit(ctx context.Context, id string, status Status, note string) {
	if w.audit == nil {
		return
	}
	actor, reason := "", ""
	w.mu.RLock()
	if record, ok := w.jobs[id]; ok {
		actor = record.RequestedBy
		reason = record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "container_export",
		Actor:      actor,
		Status:     status,
		Reason:     reason,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}
