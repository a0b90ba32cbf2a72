package cli

import (
	"fmt"

	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current proxy status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.orchestrator(a.lenientPreferences(ctx)).Status(ctx, verify)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if !st.Running {
				p.Line("No active proxy.")
				return nil
			}

			sess := st.Session
			p.Blank()
			p.Title("Proxy Status")
			p.Blank()
			p.Field("Region", fmt.Sprintf("%s (%s)", config.RegionName(sess.Region), sess.Region))
			p.Field("Instance", sess.InstanceID)
			if sess.InstanceType != "" {
				p.Field("Instance type", sess.InstanceType)
			}
			p.Field("Public IP", sess.PublicIP)
			p.Field("SOCKS", fmt.Sprintf("localhost:%d", sess.LocalPort))
			p.Field("SSH tunnel", p.Check(st.TunnelAlive, "Running", "Not running"))
			if st.SystemProxySupported {
				p.Field("System proxy", p.Check(st.SystemProxyEnabled, "Enabled", "Disabled"))
			} else {
				p.Field("System proxy", "Not supported on this platform")
			}
			p.Field("Running for", formatUptime(st.Uptime))
			if st.CostKnown {
				p.Field("Estimated cost", fmt.Sprintf("$%.4f", st.EstimatedCost))
			}
			if verify {
				if st.VerifyError != nil {
					p.Field("Exit address", p.Check(false, "", st.VerifyError.Error()))
				} else {
					p.Field("Exit address", p.Check(st.ExitAddress == sess.PublicIP, st.ExitAddress, st.ExitAddress+" (expected "+sess.PublicIP+")"))
				}
			}
			p.Blank()
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Fetch the public address seen through the tunnel")
	return cmd
}
