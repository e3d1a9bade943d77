package segment

import (
	"strings"
	"testing"
)

func TestIsBoundary(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"numeral header", "一：关于期中考试的安排", true},
		{"compound numeral header", "十二：补考报名", true},
		{"numeral header with indent", "  三：选课提醒  ", true},
		{"numeral then bracket", "一：【期中考试通知】", true},
		{"bracket title", "【期中考试通知】详情如下", true},
		{"bracket with indent", "\t【奖学金评定】", true},
		{"notice header", "通知：明天停课", true},
		{"important notice header", "重要通知：宿舍检查", true},
		{"ascii colon is not a header", "一:关于期中考试", false},
		{"notice without colon", "通知明天停课", false},
		{"notice mid-line", "请查看通知：明天停课", false},
		{"plain text", "请各位同学按时提交材料。", false},
		{"arabic numbering", "1：第一项", false},
		{"blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBoundary(tt.line); got != tt.want {
				t.Fatalf("IsBoundary(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestSplit_NumeralHeaders(t *testing.T) {
	got := Split("一：通知 A 内容\n二：通知 B 内容")
	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "一：") || !strings.HasPrefix(got[1], "二：") {
		t.Fatalf("spans do not start with their headers: %q", got)
	}
}

func TestSplit_NoBoundaryIsSingleSpan(t *testing.T) {
	text := "\n\n  各位同学：\n请于周五前提交体检表。\n\n谢谢配合。  \n\n"
	got := Split(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 span, got %d: %q", len(got), got)
	}
	if got[0] != strings.TrimSpace(text) {
		t.Fatalf("span = %q, want %q", got[0], strings.TrimSpace(text))
	}
}

func TestSplit_BodyBlankLinesStayInSpan(t *testing.T) {
	text := "【选课通知】\n第一段\n\n第二段\n【缴费通知】\n请按时缴费"
	spans := SplitSpans(text)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if want := []string{"【选课通知】", "第一段", "", "第二段"}; strings.Join(spans[0].Lines, "|") != strings.Join(want, "|") {
		t.Fatalf("first span lines = %q, want %q", spans[0].Lines, want)
	}
	if spans[1].Text() != "【缴费通知】\n请按时缴费" {
		t.Fatalf("second span = %q", spans[1].Text())
	}
}

func TestSplit_BoundaryOnFirstLineDoesNotFlush(t *testing.T) {
	got := Split("通知：第一条\n内容")
	if len(got) != 1 {
		t.Fatalf("expected 1 span, got %d: %q", len(got), got)
	}
}

func TestSplit_TrailingBlankLinesAreTrimmedFromSpanText(t *testing.T) {
	got := Split("通知：第一条\n\n\n重要通知：第二条")
	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(got))
	}
	if got[0] != "通知：第一条" {
		t.Fatalf("first span = %q", got[0])
	}
}

func TestSplit_CRLF(t *testing.T) {
	got := Split("一：甲\r\n内容甲\r\n二：乙\r\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d: %q", len(got), got)
	}
	if got[0] != "一：甲\n内容甲" {
		t.Fatalf("first span = %q", got[0])
	}
}

func TestSplit_Empty(t *testing.T) {
	for _, in := range []string{"", "  ", "\n\n\t\n"} {
		if got := Split(in); len(got) != 0 {
			t.Fatalf("Split(%q) = %q, want no spans", in, got)
		}
	}
}

func TestSplitSpans_PreservesEveryContentLine(t *testing.T) {
	inputs := []string{
		"一：通知 A 内容\n二：通知 B 内容",
		"\n\n【A】\na1\n\na2\n【B】\n通知：C\nc1\n重要通知：D",
		"no boundaries here\njust text\n\nmore text",
		"【A】\n一：【B】\nb\n\n\n三：C",
	}

	for _, in := range inputs {
		spans := SplitSpans(in)
		got := 0
		for _, s := range spans {
			got += len(s.Lines)
		}
		want := len(strings.Split(strings.TrimSpace(in), "\n"))
		if got != want {
			t.Fatalf("input %q: spans hold %d lines, want %d", in, got, want)
		}

		var joined []string
		for _, s := range spans {
			joined = append(joined, s.Lines...)
		}
		if strings.Join(joined, "\n") != strings.TrimSpace(in) {
			t.Fatalf("input %q: lines reordered or altered: %q", in, joined)
		}
	}
}
