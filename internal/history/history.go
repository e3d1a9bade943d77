// Package history keeps the audit trail of processed notifications.
//
// Two backends are available. JSONFileStore reads and rewrites a single
// JSON list compatible with existing notification_history.json files.
// SQLiteStore appends rows to a SQLite table and suits larger histories.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vgh186/feishu/internal/record"
)

// TimeLayout formats Entry.ProcessedAt.
const TimeLayout = "2006-01-02 15:04:05"

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Entry is one processed notification. JSON keys match the legacy history file.
type Entry struct {
	Title       string  `json:"院校通知"`
	Summary     string  `json:"院校通知详情 AI"`
	CreatedDate string  `json:"创建时间"`
	Deadline    *string `json:"截止日期"`
	Status      string  `json:"状态"`
	ProcessedAt string  `json:"处理时间"`
	BatchID     string  `json:"batch_id,omitempty"`
}

// NewEntry snapshots rec, stamped with the processing time.
func NewEntry(rec *record.Record, batchID string, at time.Time) Entry {
	var deadline *string
	if rec.Deadline != nil {
		d := *rec.Deadline
		deadline = &d
	}
	return Entry{
		Title:       rec.Title,
		Summary:     rec.SummaryDetail,
		CreatedDate: rec.CreatedDate,
		Deadline:    deadline,
		Status:      rec.Status,
		ProcessedAt: at.Format(TimeLayout),
		BatchID:     batchID,
	}
}

// Succeeded reports whether the entry's write succeeded.
func (e Entry) Succeeded() bool {
	return e.Status == record.StatusSuccess
}

// ListOpts controls List.
type ListOpts struct {
	Limit int // 0 = all
}

// Store is an append-only history log.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns entries newest first.
	List(ctx context.Context, opts ListOpts) ([]Entry, error)
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string // "json" (default) or "sqlite"
	Path    string
}

// Open opens the configured backend.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendJSON:
		return NewJSONFileStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown history backend %q (supported: json, sqlite)", cfg.Backend)
	}
}

// newestFirst reverses entries in place.
func newestFirst(entries []Entry, limit int) []Entry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
