package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) stopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running proxy and clean up AWS resources",
		Long: `Stop disables the system proxy, closes the tunnel, and deletes the instance,
security group, and key pair. Without --force the first failure aborts the stop
and the session is kept so that running stop again picks up where it left off.
With --force every step is attempted and the session is always discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			prefs := a.lenientPreferences(ctx)
			return a.withLock(ctx, func() error {
				if err := a.orchestrator(prefs).Stop(ctx, force); err != nil {
					return err
				}
				p := newPrinter(cmd.OutOrStdout())
				p.Blank()
				p.Success("Proxy stopped and cleaned up!")
				p.Blank()
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Continue past failures and always discard the session")
	return cmd
}
