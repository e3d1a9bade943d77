package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFence removes a Markdown code fence wrapped around model output,
// e.g. "```json\n{...}\n```".
func StripFence(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// embeddedObject returns the text from the first "{" to the last "}", or ""
// when there is no such pair.
func embeddedObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}

// ParseResponse decodes the model's JSON answer for span. The object may be
// fenced or surrounded by prose. The summary falls back to span when missing.
// deadlineRejected reports a non-null deadline that failed validation and was
// dropped.
func ParseResponse(content, span string) (res Result, deadlineRejected bool, err error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(StripFence(content)), &fields); err != nil {
		obj := embeddedObject(content)
		if obj == "" {
			return Result{}, false, fmt.Errorf("invalid JSON: %w", err)
		}
		fields = nil
		if err := json.Unmarshal([]byte(obj), &fields); err != nil {
			return Result{}, false, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	res = Result{Summary: span, Method: MethodLLM}
	if title, ok := fields["title"].(string); ok {
		res.Title = strings.TrimSpace(title)
	}
	if summary, ok := fields["summary"].(string); ok && strings.TrimSpace(summary) != "" {
		res.Summary = summary
	}
	res.Deadline, deadlineRejected = normalizeDeadlineValue(fields["deadline"])
	return res, deadlineRejected, nil
}
