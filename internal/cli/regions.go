package cli

import (
	"strings"

	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) listRegionsCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "list-regions",
		Short: "List available AWS regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			p.Blank()
			p.Title("Available AWS Regions:")
			p.Blank()
			if detailed {
				p.Line("%-20s %-20s %s", "Code", "Name", "Default Instance")
				p.Line("%s", strings.Repeat("-", 56))
				for _, r := range config.Regions() {
					p.Line("%-20s %-20s %s", r.Code, r.Name, r.DefaultInstanceType())
				}
			} else {
				for _, r := range config.Regions() {
					p.Line("  %s (%s)", r.Code, r.Name)
				}
			}
			p.Blank()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "Show a table including the default instance type")
	return cmd
}
