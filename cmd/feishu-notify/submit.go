package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vgh186/feishu/internal/dispatch"
	"github.com/vgh186/feishu/internal/segment"
)

func newSubmitCmd(g *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit [file|-]",
		Short: "Process notices and write them to the bitable",
		Long: `Read pasted notices from a file or stdin ("-" or no argument), extract each
notification and append it to the configured Feishu bitable. A failure on one
notification does not stop the rest of the batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("没有输入文本")
			}

			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			report := a.dispatcher.Process(cmd.Context(), text, dispatch.Options{
				DryRun: dryRun,
				Progress: func(current, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "正在处理 %d/%d...\n", current, total)
				},
				OnOutcome: func(o dispatch.Outcome) {
					printOutcome(out, o, dryRun)
				},
			})
			fmt.Fprintln(out, report.Summary())
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and print records without writing to Feishu or history")
	return cmd
}

func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split [file|-]",
		Short: "Show how the input splits into notifications",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			spans := segment.Split(text)
			for i, s := range spans {
				fmt.Fprintf(out, "--- 通知 %d ---\n%s\n", i+1, s)
			}
			fmt.Fprintf(out, "共 %d 条通知\n", len(spans))
			return nil
		},
	}
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(b), nil
}

func printOutcome(w io.Writer, o dispatch.Outcome, dryRun bool) {
	rec := o.Record
	deadline := "-"
	if rec.Deadline != nil {
		deadline = *rec.Deadline
	}
	status := rec.Status
	if dryRun {
		status = "已解析"
	}
	fmt.Fprintf(w, "[%d] %s\n    截止日期: %s  创建时间: %s  %s\n", o.Index, rec.Title, deadline, rec.CreatedDate, status)
}
