package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todohabit/internal/service/transfer"
)

func exportCmd() *cobra.Command {
	var uid, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's tasks, habits and settings to a JSON file",
		Example: `  todohabit export --user 8f2c...
  todohabit export --user 8f2c... --out backup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.openSession(ctx, uid)
			if err != nil {
				return err
			}
			defer a.registry.Close(ctx)

			doc, err := s.Export()
			if err != nil {
				return err
			}
			data, err := transfer.Marshal(doc)
			if err != nil {
				return err
			}
			if out == "" {
				out = transfer.FileName(time.Now())
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			a.log.Info("Export written",
				zap.String("user_id", uid),
				zap.String("file", out),
				zap.Int("todos", len(doc.Todos)),
				zap.Int("habits", len(doc.Habits)),
			)
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uid, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default todohabit_export_<date>.json)")
	return cmd
}

func importCmd() *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a user's tasks and habits with an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// validate before touching any store
			if _, err := transfer.Parse(data); err != nil {
				return err
			}

			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.openSession(ctx, uid)
			if err != nil {
				return err
			}
			defer a.registry.Close(ctx)
			if err := s.Import(ctx, data); err != nil {
				return err
			}
			if err := s.Flush(ctx); err != nil {
				return err
			}

			a.log.Info("Import applied", zap.String("user_id", uid), zap.String("file", args[0]))
			if b := s.Banner(); b != "" {
				fmt.Fprintln(os.Stderr, b)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&uid, "user", "u", "", "user id")
	return cmd
}
