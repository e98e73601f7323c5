package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bizhub.io/internal/access"
	"bizhub.io/internal/audit"
	"bizhub.io/internal/config"
	"bizhub.io/internal/obs"
	"bizhub.io/internal/store/pg"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	dsn      string
	logLevel string
	actor    string
	out      io.Writer
}

func rootCmd() *cobra.Command {
	g := &globals{out: os.Stdout}

	cmd := &cobra.Command{
		Use:           "accessctl",
		Short:         "Administer BizHub access control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obs.SetLogger(obs.NewLogger(os.Stderr, g.logLevel, "text"))
			g.out = cmd.OutOrStdout()
		},
	}
	cmd.PersistentFlags().StringVar(&g.dsn, "dsn", os.Getenv(config.EnvPostgresDSN), "PostgreSQL DSN")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.actor, "actor", "accessctl", "User id recorded as the actor in audit events")

	cmd.AddCommand(
		migrateCmd(g),
		domainsCmd(g),
		invitationsCmd(g),
		permissionsCmd(g),
		tokenCmd(g),
		userCmd(g),
	)
	return cmd
}

func (g *globals) openStore(ctx context.Context) (*pg.Store, error) {
	if g.dsn == "" {
		return nil, errors.New("missing DSN: provide via --dsn or " + config.EnvPostgresDSN)
	}
	store, err := pg.Open(g.dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// service builds an access service over store; audit events go to the log
// and to the security_audit_events table.
func (g *globals) service(store *pg.Store) (*access.Service, error) {
	logger := obs.Logger()
	sink := audit.Multi(audit.LogSink{Logger: logger}, audit.StoreSink{Store: store})
	return access.NewService(store, access.WithAuditSink(sink), access.WithLogger(logger))
}

func (g *globals) withService(ctx context.Context, fn func(*access.Service) error) error {
	store, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	svc, err := g.service(store)
	if err != nil {
		return err
	}
	return fn(svc)
}

func (g *globals) logger() *slog.Logger { return obs.Logger() }
