// Package segment splits a pasted block of chat notifications into one span
// per notification.
//
// Boundaries are detected line by line with a small set of header patterns:
//   - CJK numeral headers ("一：", "十二：")
//   - lines opening with a full-width bracket ("【期末考试通知】")
//   - notice headers ("通知：", "重要通知：")
//
// Lines that match none of them are appended to the current span. Missing a
// boundary merges two notifications; the extractor still copes with that.
package segment

import (
	"regexp"
	"strings"
)

var (
	numeralHeaderRE  = regexp.MustCompile(`^[一二三四五六七八九十百千万]+：`)
	numeralBracketRE = regexp.MustCompile(`^[一二三四五六七八九十百千万]+：\s*【`)
	noticeHeaderRE   = regexp.MustCompile(`^(重要)?通知：`)
)

// OpenBracket and CloseBracket delimit bracketed notification titles.
const (
	OpenBracket  = "【"
	CloseBracket = "】"
)

// Span is the run of source lines belonging to one notification.
type Span struct {
	Lines []string
}

// Text joins the span's lines and trims the result.
func (s Span) Text() string {
	return strings.TrimSpace(strings.Join(s.Lines, "\n"))
}

// IsBoundary reports whether line starts a new notification. The first
// matching rule wins.
func IsBoundary(line string) bool {
	trimmed := strings.TrimSpace(line)
	if numeralHeaderRE.MatchString(trimmed) {
		return true
	}
	if strings.HasPrefix(trimmed, OpenBracket) && !numeralBracketRE.MatchString(trimmed) {
		return true
	}
	return noticeHeaderRE.MatchString(trimmed)
}

// SplitSpans segments text into spans in input order. Blank lines before the
// first content line are dropped; later blank lines stay inside the span they
// appear in. Spans that are blank after trimming are discarded.
func SplitSpans(text string) []Span {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var (
		spans   []Span
		current []string
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if started {
				current = append(current, line)
			}
			continue
		}
		started = true

		if len(current) > 0 && IsBoundary(line) {
			spans = append(spans, Span{Lines: current})
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		spans = append(spans, Span{Lines: current})
	}

	out := spans[:0]
	for _, s := range spans {
		if s.Text() != "" {
			out = append(out, s)
		}
	}
	return out
}

// Split returns the trimmed text of every span produced by SplitSpans.
func Split(text string) []string {
	spans := SplitSpans(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, s.Text())
	}
	return out
}
