package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create one permission per catalog code, the admin role and the admin user",
		Long: `Seed is idempotent. Permissions that already exist are reused, the admin role is
given every catalog permission, and the admin user (ADMIN_ACCOUNT / ADMIN_PASSWORD)
is created only when it does not exist yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.srv.Seed(ctx)
		},
	}
}
