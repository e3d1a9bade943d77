// Package feishu writes notification records to a Feishu bitable.
//
// Every write exchanges the app credentials for a tenant access token (cached
// until it nears expiry) and inserts one row. Failures are reported as a
// (false, message) pair and never returned as errors, so one bad record
// cannot stop a batch.
package feishu

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/record"
)

var (
	// ErrIncompleteConfig means one of the four bitable credentials is missing.
	ErrIncompleteConfig = errors.New("飞书配置不完整（缺少 App ID、App Secret、多维表格 App Token 或 Table ID）")
	// ErrNoFields means the record produced no writable field.
	ErrNoFields = errors.New("没有可写入的有效字段（所有字段为空或无法转换）")
)

// invalidTokenCodes are business codes meaning the tenant token is no longer valid.
var invalidTokenCodes = map[int]bool{
	99991663: true, // invalid tenant access token
	99991668: true, // invalid access token
	99991677: true, // token expired
}

// Config holds the bitable credentials and identifiers.
type Config struct {
	AppID     string
	AppSecret string
	AppToken  string // bitable app token
	TableID   string
	BaseURL   string
	Timeout   time.Duration
	Fields    FieldNames
}

// Complete reports whether all four credentials are set.
func (c Config) Complete() bool {
	for _, v := range []string{c.AppID, c.AppSecret, c.AppToken, c.TableID} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Writer writes records using a Config.
type Writer struct {
	cfg    Config
	client *Client
	log    *zap.Logger
	loc    *time.Location

	incompleteOnce sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithLocation sets the zone whose midnight anchors date fields.
func WithLocation(loc *time.Location) WriterOption {
	return func(w *Writer) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// NewWriter creates a Writer for cfg.
func NewWriter(cfg Config, opts ...WriterOption) *Writer {
	w := &Writer{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		log:    zap.NewNop(),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write inserts rec into the configured table.
func (w *Writer) Write(ctx context.Context, rec *record.Record) (bool, string) {
	if !w.cfg.Complete() {
		w.incompleteOnce.Do(func() {
			w.log.Warn("feishu credentials not configured; records will not be written")
		})
		return false, ErrIncompleteConfig.Error()
	}

	fields := Fields(rec, w.cfg.Fields, w.loc, w.log)
	if len(fields) == 0 {
		return false, ErrNoFields.Error()
	}

	token, err := w.client.TenantToken(ctx, w.cfg.AppID, w.cfg.AppSecret)
	if err != nil {
		w.log.Warn("tenant token exchange failed", zap.Error(err))
		return false, "获取飞书访问令牌失败: " + err.Error()
	}

	res := w.client.AddRecord(ctx, token, w.cfg.AppToken, w.cfg.TableID, fields)
	if !res.OK {
		if res.HTTPStatus == http.StatusUnauthorized || invalidTokenCodes[res.Code] {
			w.client.InvalidateToken(w.cfg.AppID)
		}
		w.log.Warn("bitable write failed",
			zap.String("title", rec.Title),
			zap.Int("http_status", res.HTTPStatus),
			zap.Int("code", res.Code),
			zap.String("reason", res.Message),
		)
	}
	return res.OK, res.Message
}
