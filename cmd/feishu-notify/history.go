package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vgh186/feishu/internal/history"
)

const (
	titleColumnWidth  = 30
	statusColumnWidth = 24
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.history.List(cmd.Context(), history.ListOpts{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "（暂无历史记录）")
				return nil
			}
			if full {
				printHistoryFull(out, entries)
				return nil
			}
			printHistoryTable(out, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&full, "full", false, "print full summaries instead of a table")
	return cmd
}

// printHistoryTable aligns columns by display width so CJK titles line up.
func printHistoryTable(w io.Writer, entries []history.Entry) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n", cell("处理时间", 19), cell("院校通知", titleColumnWidth), cell("截止日期", 10), "状态")
	for _, e := range entries {
		deadline := "-"
		if e.Deadline != nil {
			deadline = *e.Deadline
		}
		fmt.Fprintf(w, "%-19s  %s  %-10s  %s\n",
			e.ProcessedAt,
			cell(e.Title, titleColumnWidth),
			deadline,
			runewidth.Truncate(e.Status, statusColumnWidth, "…"),
		)
	}
}

func printHistoryFull(w io.Writer, entries []history.Entry) {
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
		deadline := "-"
		if e.Deadline != nil {
			deadline = *e.Deadline
		}
		fmt.Fprintf(w, "%s  %s\n", e.ProcessedAt, e.Title)
		fmt.Fprintf(w, "创建时间: %s  截止日期: %s  状态: %s\n", e.CreatedDate, deadline, e.Status)
		if e.BatchID != "" {
			fmt.Fprintf(w, "批次: %s\n", e.BatchID)
		}
		fmt.Fprintln(w, e.Summary)
	}
}

func cell(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
