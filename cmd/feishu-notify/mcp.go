package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/vgh186/feishu/internal/mcp"
)

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the notification tools over MCP stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
split_notifications, submit_notifications and list_history tools.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.NewServer(mcpserver.ServerConfig{
				Dispatcher: a.dispatcher,
				History:    a.history,
				Version:    version,
			})
			a.log.Info("mcp server starting", zap.String("version", version))
			return mcpserver.ServeStdio(srv)
		},
	}
}
