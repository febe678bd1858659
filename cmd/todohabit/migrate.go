package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the remote document table (postgres driver)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.postgres == nil {
				fmt.Printf("remote driver %q needs no schema\n", a.cfg.Remote.Driver)
				return nil
			}
			if err := a.postgres.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Println("documents table ready")
			return nil
		},
	}
}
