package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/config"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.resolve(zap.NewNop())
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg config.ResolvedConfig) {
	fmt.Fprintf(w, "配置文件: %s\n\n", cfg.ConfigPath)

	rows := []struct {
		name   string
		v      config.ResolvedValue
		secret bool
	}{
		{"feishu.app_id", cfg.AppID, false},
		{"feishu.app_secret", cfg.AppSecret, true},
		{"feishu.bitable_app_token", cfg.BitableAppToken, true},
		{"feishu.table_id", cfg.TableID, false},
		{"llm.provider", cfg.LLMProvider, false},
		{"llm.api_key", cfg.LLMAPIKey, true},
		{"llm.model", cfg.LLMModel, false},
		{"history.backend", cfg.HistoryBackend, false},
		{"history.path", cfg.HistoryPath, false},
	}
	for _, r := range rows {
		val := r.v.Value
		if r.secret {
			val = config.Mask(val)
		}
		if val == "" {
			val = "（未设置）"
		}
		src := string(r.v.Source)
		if src == "" {
			src = string(config.SourceUnknown)
		}
		if r.v.From != "" {
			src += ": " + r.v.From
		}
		fmt.Fprintf(w, "%-26s %-40s [%s]\n", r.name, val, src)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "智能提取: %s\n", readiness(cfg.LLMReady()))
	fmt.Fprintf(w, "飞书写入: %s\n", readiness(cfg.FeishuReady()))
	if missing := cfg.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "缺少配置: %s\n", strings.Join(missing, ", "))
	}
}

func readiness(ok bool) string {
	if ok {
		return "已就绪"
	}
	return "未配置"
}
