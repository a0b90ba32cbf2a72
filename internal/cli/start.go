package cli

import (
	"fmt"

	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) startCmd() *cobra.Command {
	var (
		region, instanceType string
		port                 int
		noSystemProxy        bool
		restrictIngress      bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a proxy in the specified AWS region",
		Long: `Start provisions an instance in the region, opens an SSH SOCKS tunnel to it on
the local port, and enables the system proxy. Flags override preferences set
with 'region-proxy config'; anything left unset falls back to port 1080 and the
cheapest instance type for the region.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefs, err := a.preferences()
			if err != nil {
				return err
			}

			flags := config.StartFlags{RestrictIngress: restrictIngress}
			if cmd.Flags().Changed("region") {
				flags.Region = &region
			}
			if cmd.Flags().Changed("port") {
				flags.Port = &port
			}
			if cmd.Flags().Changed("instance-type") {
				flags.InstanceType = &instanceType
			}
			if cmd.Flags().Changed("no-system-proxy") {
				flags.NoSystemProxy = &noSystemProxy
			}
			opts := prefs.StartOptions(flags)

			ctx := cmd.Context()
			return a.withLock(ctx, func() error {
				sess, err := a.orchestrator(prefs).Start(ctx, opts)
				if err != nil {
					return err
				}

				p := newPrinter(cmd.OutOrStdout())
				p.Blank()
				p.Success("Proxy is ready!")
				p.Blank()
				p.Field("Region", fmt.Sprintf("%s (%s)", config.RegionName(sess.Region), sess.Region))
				p.Field("Public IP", sess.PublicIP)
				p.Field("SOCKS", fmt.Sprintf("localhost:%d", sess.LocalPort))
				p.Field("System proxy", p.Check(sess.SystemProxy, "Enabled", "Not configured"))
				p.Blank()
				p.Hint("   To stop: region-proxy stop")
				p.Blank()
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region, e.g. ap-northeast-1")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Local port for the SOCKS proxy")
	cmd.Flags().StringVarP(&instanceType, "instance-type", "i", "", "EC2 instance type (default: t4g.nano, or t3.nano where ARM is unavailable)")
	cmd.Flags().BoolVar(&noSystemProxy, "no-system-proxy", false, "Skip system proxy configuration")
	cmd.Flags().BoolVar(&restrictIngress, "restrict-ingress", false, "Only allow SSH from this machine's public address")
	return cmd
}
