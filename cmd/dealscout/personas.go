package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var personasJSON bool

func init() {
	personasCmd.Flags().BoolVar(&personasJSON, "json", false, "print personas as JSON")
	personasCmd.AddCommand(personasUseCmd)
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background(), appOptions{quiet: true})
		if err != nil {
			return err
		}
		defer func() { _ = a.close(context.Background()) }()

		out := cmd.OutOrStdout()
		if personasJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(a.registry.List())
		}
		fmt.Fprintln(out, renderPersonas(a.registry.List(), a.store.ActivePersona()))
		return nil
	},
}

var personasUseCmd = &cobra.Command{
	Use:   "use <persona>",
	Short: "Set the active persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, appOptions{quiet: true})
		if err != nil {
			return err
		}
		if err := a.store.SetActivePersona(args[0]); err != nil {
			_ = a.close(ctx)
			return err
		}
		if err := a.close(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active persona: %s\n", args[0])
		return nil
	},
}
