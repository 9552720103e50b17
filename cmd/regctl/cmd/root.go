// Package cmd holds the regctl command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"regform/internal/platform/config"
	"regform/internal/platform/logger"
	"regform/internal/registration"
	"regform/internal/registration/service"
)

type rootOptions struct {
	configPath string
	backend    string
	apiURL     string
	apiToken   string
	logLevel   string
}

// Execute runs regctl with the process arguments.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "regctl",
		Short: "Registration form tools",
		Long: `regctl fills in, lists and checks user registrations.

Commands:
  register   - interactive registration form
  list       - registered users
  validate   - check one registration against the field rules
  scenarios  - demonstration run of the field rules`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (TOML); defaults to $REGFORM_CONFIG")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "store backend: memory, postgres, redis, sqlite or remote")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "users API base URL for the remote backend")
	root.PersistentFlags().StringVar(&opts.apiToken, "api-token", "", "bearer token for the users API")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level written to stderr")

	root.AddCommand(
		newRegisterCommand(opts),
		newListCommand(opts),
		newValidateCommand(),
		newScenariosCommand(),
	)
	return root
}

func (o *rootOptions) config() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.apiURL != "" {
		cfg.API.URL = o.apiURL
	}
	if o.apiToken != "" {
		cfg.API.Token = o.apiToken
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	return logger.NewWithWriter(w, o.logLevel, "text")
}

// openService connects the configured backend. The caller closes the
// returned backend.
func (o *rootOptions) openService(ctx context.Context) (*service.Service, *registration.Backend, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	log := o.logger(os.Stderr)
	backend, err := registration.OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", cfg.Store.Backend, err)
	}
	return service.New(backend.Store, service.WithLogger(log)), backend, nil
}
