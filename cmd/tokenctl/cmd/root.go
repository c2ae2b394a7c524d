package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	_ "github.com/JonMunkholm/calctoken/internal/calculation/providers" // Register built-in providers
	"github.com/JonMunkholm/calctoken/internal/config"
	"github.com/JonMunkholm/calctoken/internal/logging"
	"github.com/JonMunkholm/calctoken/internal/service"
	"github.com/JonMunkholm/calctoken/internal/store"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	driver          string
	url             string
	caseInsensitive bool
	logLevel        string
}

// flagEnv supplies flag defaults from the same variables the server reads,
// parsed by the same loader. Only the fallbacks differ: the CLI defaults
// to a local SQLite file.
type flagEnv struct {
	Driver          string `env:"DB_DRIVER" default:"sqlite"`
	URL             string `env:"DATABASE_URL" envAlt:"DB_URL" default:"calctoken.db"`
	CaseInsensitive bool   `env:"TOKEN_NAMES_CASE_INSENSITIVE" default:"false"`
	LogLevel        string `env:"LOG_LEVEL" default:"warn"`
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tokenctl",
		Short: "Manage calculation token registrations",
		Long: `tokenctl registers, validates and lists calculation tokens.

A token maps a name to a calculation supplied by a registered provider.
Every registration is validated before it is stored: all fields are
required, the name must be unique and the provider/calculation pair must
resolve.`,
		SilenceUsage: true,
	}

	_ = godotenv.Load()

	var env flagEnv
	envErr := config.Populate(&env, os.LookupEnv)
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if envErr != nil {
			return fmt.Errorf("environment: %w", envErr)
		}
		slogToStderr(opts.logLevel)
		return nil
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "db-driver", env.Driver, "database driver: postgres or sqlite")
	flags.StringVar(&opts.url, "db-url", env.URL, "database URL or SQLite file path")
	flags.BoolVar(&opts.caseInsensitive, "case-insensitive", env.CaseInsensitive, "treat token names case-insensitively")
	flags.StringVar(&opts.logLevel, "log-level", env.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newProvidersCmd(),
		newValidateCmd(opts),
		newRegisterCmd(opts),
		newListCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// openService opens the store, migrates it and wires a service. Call the
// returned func to close the store.
func (o *options) openService(ctx context.Context) (*service.Service, func(), error) {
	st, err := store.Open(ctx, o.driver, o.url, store.Options{CaseInsensitiveNames: o.caseInsensitive})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}

	svc := service.New(st, calculation.NewResolver(nil), service.Options{CaseInsensitiveNames: o.caseInsensitive})
	return svc, st.Close, nil
}

func slogToStderr(level string) {
	slog.SetDefault(logging.New(os.Stderr, level, "text"))
}
