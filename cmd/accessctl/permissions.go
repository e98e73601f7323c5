package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bizhub.io/internal/permission"
)

func permissionsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Inspect the role permission matrix",
	}

	roles := &cobra.Command{
		Use:   "roles",
		Short: "List roles with their departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tPERMISSIONS\tDEPARTMENTS\tDESCRIPTION")
			for _, t := range permission.Templates() {
				depts := make([]string, len(t.Departments))
				for i, d := range t.Departments {
					depts[i] = string(d)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", t.Role, len(t.Permissions), strings.Join(depts, ","), t.Description)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <role> <department>",
		Short: "Print the permissions a role holds in a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := permission.ParseRole(args[0])
			if err != nil {
				return err
			}
			dept, err := permission.ParseDepartment(args[1])
			if err != nil {
				return err
			}
			for _, p := range permission.UserPermissions(role, dept).Strings() {
				fmt.Fprintln(g.out, p)
			}
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <role> <department:resource:action>",
		Short: "Report whether a role holds one permission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := permission.ParseRole(args[0])
			if err != nil {
				return err
			}
			p, err := permission.ParsePermission(args[1])
			if err != nil {
				return err
			}
			ok := permission.HasPermission(role, p.Department, p.Resource, p.Action)
			fmt.Fprintf(g.out, "%s %s: %t\n", role, p, ok)
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the built-in matrix for consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := permission.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(g.out, "permission matrix ok")
			return nil
		},
	}

	cmd.AddCommand(roles, show, check, validate)
	return cmd
}
