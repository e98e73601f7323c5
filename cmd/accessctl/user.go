package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bizhub.io/internal/ids"
	"bizhub.io/internal/permission"
)

func userCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user rows",
	}

	var (
		role string
		dept string
	)
	add := &cobra.Command{
		Use:   "add <email>",
		Short: "Insert a user, for example the bootstrap administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := permission.ParseRole(role)
			if err != nil {
				return err
			}
			d, err := permission.ParseDepartment(dept)
			if err != nil {
				return err
			}
			store, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			id := ids.New()
			if err := store.CreateUser(cmd.Context(), id, args[0], r, d); err != nil {
				return err
			}
			fmt.Fprintln(g.out, id)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", string(permission.RoleEmployee), "Role")
	add.Flags().StringVar(&dept, "department", string(permission.DepartmentOperations), "Department")

	cmd.AddCommand(add)
	return cmd
}
