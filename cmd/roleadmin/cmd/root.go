// Package cmd implements the roleadmin operator CLI on top of the role API
// client and the assignment engine.
package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/role-assignment-api/internal/client"
	"github.com/role-assignment-api/internal/config"
	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/pkg/logger"
)

// app carries the global flags and the connection shared by every subcommand
type app struct {
	cfg         config.ClientConfig
	concurrency int
	output      string
	verbose     bool

	out    io.Writer
	client *client.Client
	log    zerolog.Logger
}

// NewRootCommand builds the command tree. Connection defaults come from
// ROLE_API_URL, ROLE_API_TOKEN, ROLE_API_TIMEOUT and ENGINE_BULK_CONCURRENCY.
func NewRootCommand(version string) *cobra.Command {
	env := config.FromEnv()
	a := &app{cfg: env.Client, concurrency: env.Engine.BulkConcurrency}

	root := &cobra.Command{
		Use:   "roleadmin",
		Short: "Role assignment administration CLI",
		Long: `roleadmin manages roles and the users holding them through the role API.

Filters run the same pipeline as the admin screen: a status filter, a role
filter (include or exclude) and a free-text search. Bulk commands apply one
role to every selected user with one request per user; failed users are
reported and a re-run converges.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.connect,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfg.BaseURL, "url", a.cfg.BaseURL, "Role API base URL (env: ROLE_API_URL)")
	f.StringVar(&a.cfg.Token, "token", a.cfg.Token, "Bearer token (env: ROLE_API_TOKEN)")
	f.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "Per-request timeout (env: ROLE_API_TIMEOUT)")
	f.IntVar(&a.concurrency, "concurrency", a.concurrency, "Maximum in-flight attribution requests (env: ENGINE_BULK_CONCURRENCY)")
	f.StringVarP(&a.output, "output", "o", outputTable, "Output format: table, json")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Log every API request to stderr")

	root.AddCommand(
		a.versionCmd(version),
		a.rolesCmd(),
		a.usersCmd(),
		a.bulkCmd(),
		a.editCmd(),
		a.attributionsCmd(),
	)
	return root
}

func (a *app) connect(cmd *cobra.Command, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return &engine.ValidationError{Field: "url", Message: err.Error()}
	}
	if a.output != outputTable && a.output != outputJSON {
		return &engine.ValidationError{Field: "output", Message: fmt.Sprintf("unknown output format %q", a.output)}
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.log = logger.NewWithOptions(level, "pretty", cmd.ErrOrStderr())
	a.out = cmd.OutOrStdout()
	a.client = client.New(a.cfg.BaseURL, a.cfg.Token, a.cfg.Timeout, a.log)
	return nil
}

func (a *app) assigner() *engine.Assigner {
	return engine.NewAssigner(a.client, a.concurrency, a.log)
}

func (a *app) versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Show CLI version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "roleadmin version %s\n", version)
			fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
