package cli

import (
	"fmt"

	"github.com/chainguard-dev/region-proxy/internal/backend"
	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/spf13/cobra"
)

func (a *app) cleanupCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Clean up orphaned AWS resources",
		Long: `Cleanup deletes every instance, security group, and key pair tagged as created
by region-proxy, in one region or in all of them. Resources of the running
proxy, if any, are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			regions := config.RegionCodes()
			if cmd.Flags().Changed("region") {
				if _, ok := config.FindRegion(region); !ok {
					return fmt.Errorf("%w: unknown region %q, run 'region-proxy list-regions' to see available regions", errs.ErrInvalidConfig, region)
				}
				regions = []string{region}
			}

			ctx := cmd.Context()
			prefs := a.lenientPreferences(ctx)
			return a.withLock(ctx, func() error {
				var exclude backend.OrphanSet
				sess, err := a.store().Load()
				if err != nil {
					return err
				}
				if sess != nil {
					exclude = backend.OrphanSet{
						InstanceIDs:      []string{sess.InstanceID},
						SecurityGroupIDs: []string{sess.SecurityGroupID},
						KeyPairNames:     []string{sess.KeyPairName},
					}
				}

				reports := a.reconciler(prefs).Sweep(ctx, regions, exclude)

				p := newPrinter(cmd.OutOrStdout())
				var cleaned, failed int
				for _, rep := range reports {
					cleaned += rep.Cleaned
					failed += rep.Failed
					if rep.Err != nil {
						failed++
						p.Line("Could not check %s: %v", rep.Region, rep.Err)
						continue
					}
					if rep.Found.Empty() {
						continue
					}
					p.Line("Found orphaned resources in %s:", rep.Region)
					for _, id := range rep.Found.InstanceIDs {
						p.Line("  instance:       %s", id)
					}
					for _, id := range rep.Found.SecurityGroupIDs {
						p.Line("  security group: %s", id)
					}
					for _, name := range rep.Found.KeyPairNames {
						p.Line("  key pair:       %s", name)
					}
				}

				if cleaned == 0 && failed == 0 {
					p.Line("No orphaned resources found.")
					return nil
				}
				p.Blank()
				p.Success("Cleaned up %d resource(s).", cleaned)
				if failed > 0 {
					return fmt.Errorf("%d resource(s) or region(s) could not be cleaned up, see the log for details", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "Only clean up this region (default: all regions)")
	return cmd
}
