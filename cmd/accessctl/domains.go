package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"bizhub.io/internal/access"
)

func domainsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Show or replace the allowed email domains",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the allowed domain configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd.Context(), func(svc *access.Service) error {
				cfg, err := svc.AllowedDomains(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(g, cfg)
			})
		},
	}

	var require bool
	set := &cobra.Command{
		Use:   "set [domain...]",
		Short: "Replace the allowed domains",
		Long: `Replace the allowed domain list. With --require, only listed domains
(or invited users) may register; with no domains and --require, registration
is invitation-only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd.Context(), func(svc *access.Service) error {
				saved, err := svc.UpdateAllowedDomains(cmd.Context(), access.AllowedDomainsConfig{
					Domains:       args,
					RequireDomain: require,
				}, g.actor)
				if err != nil {
					return err
				}
				return printJSON(g, saved)
			})
		},
	}
	set.Flags().BoolVar(&require, "require", false, "Only allow listed domains")

	cmd.AddCommand(get, set)
	return cmd
}

func printJSON(g *globals, v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
