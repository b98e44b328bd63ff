package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "seed catalog permissions and the admin account before serving (also SEED_ON_START)")

	return cmd
}

func runServe(ctx context.Context, seed bool) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if seed || a.cfg.SeedOnStart {
		if err := a.srv.Seed(ctx); err != nil {
			return err
		}
	}
	return a.srv.Run(ctx)
}
