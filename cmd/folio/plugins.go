package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/folio/internal/bootstrap"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discovered plugins in load order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Plugins) == 0 {
			return fmt.Errorf("no plugin directories configured (use --plugins or plugins: in folio.yaml)")
		}
		specs, err := bootstrap.Discover(cmd.Context(), cfg.Plugins)
		if err != nil {
			return err
		}
		ordered, err := bootstrap.Order(specs)
		if err != nil {
			return err
		}
		if err := bootstrap.RequireCore(ordered, bootstrap.CoreName); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}

		out := cmd.OutOrStdout()
		for _, s := range ordered {
			status := "enabled"
			switch {
			case s.HasError():
				status = "error: " + s.Error
			case !s.Enabled():
				status = "disabled"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", s.Name, s.Version, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
