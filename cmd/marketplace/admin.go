package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmarket/marketplace"
	"github.com/openmarket/marketplace/storefront"
)

var seedUser string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add demo products to the catalog",
	Long: `seed adds one demo product per category. When nobody is logged in the
products are added as --user, who is then logged in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *marketplace.App) error {
			added, res, err := app.Controller.Seed(ctx, seedUser, storefront.DemoProducts())
			if err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products as %s\n", len(added), app.Controller.Session().Username)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Log out and erase the stored session, catalog and cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *marketplace.App) error {
			stored, err := app.Controller.StoredSlots(ctx)
			if err != nil {
				return err
			}
			res := app.Controller.Logout(ctx)
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Storefront state erased (%d slots were stored)\n", len(stored))
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "marketplace %s (api %s, commit %s, built %s)\n",
			marketplace.Version, marketplace.APIVersion, marketplace.GitCommit, marketplace.BuildDate)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedUser, "user", "demo", "Username to seed as when logged out")
}

func withApp(parent context.Context, fn func(context.Context, *marketplace.App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	app, err := marketplace.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	return fn(ctx, app)
}
