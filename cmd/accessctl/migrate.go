package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bizhub.io/internal/migrate"
	"bizhub.io/migrations"
)

func migrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	withManager := func(cmd *cobra.Command, fn func(*migrate.Manager) error) error {
		store, err := g.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(migrate.NewManager(store.DB(), migrations.FS(), migrate.WithSeeds(migrations.Seeds())))
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(m *migrate.Manager) error {
					applied, err := m.Up(cmd.Context())
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Fprintln(g.out, "schema is up to date")
					}
					for _, name := range applied {
						fmt.Fprintln(g.out, "applied", name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(m *migrate.Manager) error {
					name, err := m.Down(cmd.Context())
					if err != nil {
						return err
					}
					if name == "" {
						fmt.Fprintln(g.out, "nothing to roll back")
						return nil
					}
					fmt.Fprintln(g.out, "rolled back", name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(m *migrate.Manager) error {
					history, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}
					for _, item := range history {
						fmt.Fprintln(g.out, item)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "pending",
			Short: "List migrations not yet applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(m *migrate.Manager) error {
					pending, err := m.Pending(cmd.Context())
					if err != nil {
						return err
					}
					for _, name := range pending {
						fmt.Fprintln(g.out, name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Apply seed data",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(m *migrate.Manager) error {
					return m.Seed(cmd.Context())
				})
			},
		},
	)
	return cmd
}
