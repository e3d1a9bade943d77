// Package record assembles storage-ready notification records from a span
// and its extraction result.
package record

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vgh186/feishu/internal/extract"
)

// DefaultTitle is used when no title can be derived from a span.
const DefaultTitle = "教学通知"

// DateLayout is the ISO calendar date layout used for record dates.
const DateLayout = "2006-01-02"

// Status markers written to history.
const (
	StatusSuccess       = "成功"
	statusFailurePrefix = "失败: "
)

var bracketTitleRE = regexp.MustCompile(`^\s*【([^】]+)】`)

// sentenceEndRE finds the first full-width period, or an ASCII period that
// ends a sentence (followed by whitespace or the end of the line).
var sentenceEndRE = regexp.MustCompile(`。|\.(\s|$)`)

var noticePrefixes = []string{"通知：", "通知:"}

// Record is one notification ready to be written to the bitable.
type Record struct {
	Title         string  `json:"title"`
	SummaryDetail string  `json:"summary_detail"`
	CreatedDate   string  `json:"created_date"`
	Deadline      *string `json:"deadline"`
	Status        string  `json:"status,omitempty"`
}

// MarkStatus records the outcome of the external write.
func (r *Record) MarkStatus(success bool, message string) {
	if success {
		r.Status = StatusSuccess
		return
	}
	r.Status = statusFailurePrefix + message
}

// Assembler builds records. The zero value is not usable; call NewAssembler.
type Assembler struct {
	now func() time.Time
}

// NewAssembler returns an Assembler dating records with now (time.Now if nil).
func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble builds the record for span from its extraction result.
func (a *Assembler) Assemble(span string, res extract.Result) *Record {
	title := strings.TrimSpace(res.Title)
	if title == "" {
		title = FallbackTitle(span)
	}
	summary := res.Summary
	if strings.TrimSpace(summary) == "" {
		summary = span
	}

	var deadline *string
	if res.Deadline != nil {
		d := *res.Deadline
		deadline = &d
	}

	return &Record{
		Title:         title,
		SummaryDetail: summary,
		CreatedDate:   a.now().Format(DateLayout),
		Deadline:      deadline,
	}
}

// FallbackTitle derives a title from the first line of span:
//  1. the text inside a leading 【...】 pair, else
//  2. the line up to its first sentence end, cut to 60 runes, else
//  3. DefaultTitle.
//
// Leftover "通知：" prefixes are removed from the result.
func FallbackTitle(span string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(span), "\n")
	first = strings.TrimSpace(first)

	var title string
	if m := bracketTitleRE.FindStringSubmatch(first); m != nil {
		title = strings.TrimSpace(m[1])
	} else {
		if loc := sentenceEndRE.FindStringIndex(first); loc != nil {
			first = first[:loc[0]]
		}
		title = strings.TrimSpace(truncateRunes(first, extract.MaxTitleRunes))
	}

	for _, p := range noticePrefixes {
		title = strings.ReplaceAll(title, p, "")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	return title
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
