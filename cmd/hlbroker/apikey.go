package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/flemzord/hlbroker/pkg/app"
	"github.com/spf13/cobra"
)

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print its secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			literal, _ := cmd.Flags().GetString("key")
			return withKeys(cmd, func(m *app.KeyManager) error {
				secret, key, err := m.Create(cmd.Context(), name, literal)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id:     %d\nsecret: %s\n", key.ID, secret)
				return nil
			})
		},
	}
	create.Flags().String("name", "", "Label for the key")
	create.Flags().String("key", "", "Use this secret instead of generating one")

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeys(cmd, func(m *app.KeyManager) error {
				keys, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPREFIX\tNAME\tACTIVE\tCREATED\tLAST USED")
				for _, k := range keys {
					last := "-"
					if k.LastUsedAt != nil {
						last = k.LastUsedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
						k.ID, k.KeyPrefix, k.Name, k.Active, k.CreatedAt.Format("2006-01-02 15:04"), last)
				}
				return tw.Flush()
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Deactivate an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			return withKeys(cmd, func(m *app.KeyManager) error {
				if err := m.Revoke(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked key %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func withKeys(cmd *cobra.Command, fn func(*app.KeyManager) error) (err error) {
	params := runParams(cmd)
	m, err := app.OpenKeyManager(cmd.Context(), params.ConfigPath, params.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(m)
}
