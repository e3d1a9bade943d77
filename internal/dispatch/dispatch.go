// Package dispatch runs a pasted block of notifications through the whole
// pipeline: segment, extract, assemble, write, then log to history.
//
// Notifications are processed one at a time in segmentation order. A failed
// write is recorded and counted; it never stops the rest of the batch.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/extract"
	"github.com/vgh186/feishu/internal/history"
	"github.com/vgh186/feishu/internal/record"
	"github.com/vgh186/feishu/internal/segment"
)

// Extractor extracts fields from one span.
type Extractor interface {
	Extract(ctx context.Context, span string) extract.Result
}

// Writer writes one record to the external table.
type Writer interface {
	Write(ctx context.Context, rec *record.Record) (bool, string)
}

// Recorder appends processed records to history.
type Recorder interface {
	Append(ctx context.Context, e history.Entry) error
}

// Outcome is the result of processing one notification.
type Outcome struct {
	Index   int            `json:"index"` // 1-based position in the batch
	Span    string         `json:"span"`
	Record  *record.Record `json:"record"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
}

// Report summarises a processed batch.
type Report struct {
	BatchID   string    `json:"batch_id"`
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	DryRun    bool      `json:"dry_run,omitempty"`
}

// Total returns the number of notifications in the batch.
func (r *Report) Total() int { return len(r.Outcomes) }

// Summary is the batch-level tally shown after processing.
func (r *Report) Summary() string {
	switch {
	case r.Total() == 0:
		return "未识别到通知，请检查输入文本"
	case r.DryRun:
		return fmt.Sprintf("试运行：已解析 %d 条通知，未写入", r.Total())
	case r.Failed == 0:
		return fmt.Sprintf("完成：%d 条通知全部写入成功", r.Succeeded)
	default:
		return fmt.Sprintf("完成：成功 %d 条，失败 %d 条", r.Succeeded, r.Failed)
	}
}

// Options controls one Process call.
type Options struct {
	// DryRun extracts and assembles without writing or logging to history.
	DryRun bool
	// Progress is called before each notification with its 1-based index.
	Progress func(current, total int)
	// OnOutcome is called after each notification completes.
	OnOutcome func(o Outcome)
}

// Dispatcher drives the pipeline.
type Dispatcher struct {
	extractor Extractor
	assembler *record.Assembler
	writer    Writer
	history   Recorder
	log       *zap.Logger
	now       func() time.Time
	newID     func() string

	// mu keeps batches strictly sequential when Process is called from
	// several goroutines (the MCP server dispatches handlers concurrently).
	mu sync.Mutex
}

// Config wires a Dispatcher. History may be nil to skip the audit log.
type Config struct {
	Extractor Extractor
	Assembler *record.Assembler
	Writer    Writer
	History   Recorder
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		extractor: cfg.Extractor,
		assembler: cfg.Assembler,
		writer:    cfg.Writer,
		history:   cfg.History,
		log:       cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.assembler == nil {
		d.assembler = record.NewAssembler(d.now)
	}
	return d
}

// Process segments text and handles every notification in order.
func (d *Dispatcher) Process(ctx context.Context, text string, opts Options) *Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	spans := segment.Split(text)
	report := &Report{
		BatchID:  d.newID(),
		Outcomes: make([]Outcome, 0, len(spans)),
		DryRun:   opts.DryRun,
	}
	log := d.log.With(zap.String("batch", report.BatchID))
	log.Info("processing batch", zap.Int("notifications", len(spans)), zap.Bool("dry_run", opts.DryRun))

	for i, span := range spans {
		if opts.Progress != nil {
			opts.Progress(i+1, len(spans))
		}
		o := d.processOne(ctx, log, report.BatchID, i+1, span, opts.DryRun)
		report.Outcomes = append(report.Outcomes, o)
		if !opts.DryRun {
			if o.Success {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
		if opts.OnOutcome != nil {
			opts.OnOutcome(o)
		}
	}

	log.Info("batch finished", zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	return report
}

func (d *Dispatcher) processOne(ctx context.Context, log *zap.Logger, batchID string, index int, span string, dryRun bool) Outcome {
	res := d.extractor.Extract(ctx, span)
	rec := d.assembler.Assemble(span, res)
	o := Outcome{Index: index, Span: span, Record: rec}
	if dryRun {
		o.Message = "试运行：未写入"
		return o
	}

	o.Success, o.Message = d.writer.Write(ctx, rec)
	rec.MarkStatus(o.Success, o.Message)

	if d.history != nil {
		// The entry is written even after ctx is cancelled so every attempt,
		// including one that already reached the bitable, stays on record.
		if err := d.history.Append(context.WithoutCancel(ctx), history.NewEntry(rec, batchID, d.now())); err != nil {
			log.Warn("failed to append history", zap.Int("index", index), zap.Error(err))
		}
	}
	if !o.Success {
		log.Warn("notification not written", zap.Int("index", index), zap.String("title", rec.Title), zap.String("reason", o.Message))
	}
	return o
}
