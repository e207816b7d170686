package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/pkg/app"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = app.DefaultConfigPath()
			}
			dataDir, _ := cmd.Flags().GetString("data-dir")
			yes, _ := cmd.Flags().GetBool("yes")

			s := app.Scaffold{
				Bind:       "127.0.0.1:8080",
				DataDir:    dataDir,
				NotifyMode: "async",
				Audit:      true,
			}
			genKey := true
			if !yes {
				if err := scaffoldForm(&s, &genKey).RunWithContext(cmd.Context()); err != nil {
					return err
				}
			}
			if genKey {
				key, err := security.GenerateKey()
				if err != nil {
					return err
				}
				s.SeedKey = key
			}

			if err := s.Write(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", path)
			if s.SeedKey != "" {
				fmt.Fprintf(out, "API key (stored in the config as a seed key): %s\n", s.SeedKey)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func scaffoldForm(s *app.Scaffold, genKey *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&s.Bind).
				Validate(func(v string) error {
					if _, _, err := net.SplitHostPort(v); err != nil {
						return errors.New("expected host:port")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Notification mode").
				Description("async answers the agent before Slack is reached").
				Options(huh.NewOption("async", "async"), huh.NewOption("sync", "sync")).
				Value(&s.NotifyMode),
			huh.NewConfirm().Title("Write an audit log?").Value(&s.Audit),
			huh.NewConfirm().Title("Generate an API key?").Value(genKey),
			huh.NewConfirm().Title("Post requests to Slack?").Value(&s.Slack),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Slack bot token").
				Description("Leave empty to read SLACK_BOT_TOKEN at startup").
				EchoMode(huh.EchoModePassword).
				Value(&s.SlackBotToken),
			huh.NewInput().
				Title("Slack signing secret").
				Description("Leave empty to read SLACK_SIGNING_SECRET at startup").
				EchoMode(huh.EchoModePassword).
				Value(&s.SlackSigningSecret),
		).WithHideFunc(func() bool { return !s.Slack }),
	)
}
