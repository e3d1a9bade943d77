// Command feishu-notify turns pasted school notices into rows of a Feishu
// bitable. It splits the text into notifications, extracts a title, summary
// and deadline for each with a chat-completion model, writes the records and
// keeps a local history of every attempt.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/config"
	"github.com/vgh186/feishu/internal/dispatch"
	"github.com/vgh186/feishu/internal/extract"
	"github.com/vgh186/feishu/internal/feishu"
	"github.com/vgh186/feishu/internal/history"
	"github.com/vgh186/feishu/internal/llm"
	"github.com/vgh186/feishu/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath     string
	historyPath    string
	historyBackend string
	logLevel       string
	logFormat      string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "feishu-notify",
		Short: "Split pasted school notices and record them in a Feishu bitable",
		Long: `feishu-notify splits a block of pasted notices into individual notifications,
extracts a title, summary and deadline for each, and appends them to a Feishu
bitable. Every attempt is kept in a local history log.

Examples:
  # Submit notices from a file
  feishu-notify submit notices.txt

  # Submit from stdin without writing anything
  pbpaste | feishu-notify submit --dry-run -

  # Show the last ten processed notifications
  feishu-notify history --limit 10`,
		Version:      version,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default feishu_config.json next to the executable, or $"+config.EnvConfigPath+")")
	pf.StringVar(&g.historyPath, "history", "", "history file or database path")
	pf.StringVar(&g.historyBackend, "history-backend", "", "history backend: json or sqlite")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", logging.FormatConsole, "log format: console or json")

	cmd.AddCommand(
		newSubmitCmd(g),
		newSplitCmd(),
		newHistoryCmd(g),
		newConfigCmd(g),
		newMCPCmd(g),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feishu-notify %s\n", version)
		},
	}
}

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg        config.ResolvedConfig
	log        *zap.Logger
	history    history.Store
	dispatcher *dispatch.Dispatcher
}

func (g *globalFlags) resolve(log *zap.Logger) (config.ResolvedConfig, error) {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:     g.configPath,
		HistoryPath:    g.historyPath,
		HistoryBackend: g.historyBackend,
	})
	if err != nil {
		if !errors.Is(err, config.ErrMalformedConfig) {
			return cfg, err
		}
		// Environment and flag values still apply.
		log.Warn("ignoring config file", zap.Error(err))
	}
	return cfg, nil
}

// newApp resolves configuration and wires every collaborator.
func newApp(g *globalFlags) (*app, error) {
	log, err := logging.New(logging.Options{Level: g.logLevel, Format: g.logFormat})
	if err != nil {
		return nil, err
	}

	cfg, err := g.resolve(log)
	if err != nil {
		return nil, err
	}
	log.Debug("configuration resolved",
		zap.String("config_path", cfg.ConfigPath),
		zap.String("llm_provider", cfg.LLMProvider.Value),
		zap.String("history_backend", cfg.HistoryBackend.Value),
		zap.String("history_path", cfg.HistoryPath.Value),
		logging.RedactedString("app_secret", cfg.AppSecret.Value),
	)

	var provider llm.Provider
	if p, err := llm.NewProvider(cfg.LLMConfig()); err == nil {
		provider = p
	} else if !errors.Is(err, llm.ErrMissingCredentials) {
		return nil, fmt.Errorf("configuring llm: %w", err)
	}

	store, err := history.Open(cfg.HistoryConfig())
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	d := dispatch.New(dispatch.Config{
		Extractor: extract.New(provider, extract.WithLogger(log.Named("extract"))),
		Writer:    feishu.NewWriter(cfg.FeishuConfig(), feishu.WithLogger(log.Named("feishu"))),
		History:   store,
		Logger:    log.Named("dispatch"),
	})

	return &app{cfg: cfg, log: log, history: store, dispatcher: d}, nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("closing history", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
