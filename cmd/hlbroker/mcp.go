package main

import (
	"context"

	"github.com/flemzord/hlbroker/internal/mcpserver"
	"github.com/flemzord/hlbroker/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the approval tools over MCP on stdio",
		Long: "Runs the broker without its HTTP gateway and exposes request_approval,\n" +
			"get_approval, contact_human and get_human_contact as MCP tools on stdin/stdout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			slackChannel, _ := cmd.Flags().GetString("slack-channel")
			runID, _ := cmd.Flags().GetString("run-id")

			return app.WithRuntime(cmd.Context(), runParams(cmd), []string{"gateway.http"},
				func(ctx context.Context, rt *app.Runtime) error {
					if err := rt.App.Start(); err != nil {
						return err
					}
					defer rt.App.Stop()

					srv := mcpserver.New(rt.FunctionCalls, rt.HumanContacts, mcpserver.Config{
						Version:      version,
						RunID:        runID,
						SlackChannel: slackChannel,
					}, rt.Logger.With("component", "mcp"))
					return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				})
		},
	}
	cmd.Flags().String("slack-channel", "", "Default Slack channel or user ID for new requests")
	cmd.Flags().String("run-id", "", "run_id attached to requests that name none")
	return cmd
}
