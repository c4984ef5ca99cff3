// Package cli is the shelf command-line front end.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/shelf/internal/config"
	dbutil "github.com/llehouerou/shelf/internal/db"
	"github.com/llehouerou/shelf/internal/errmsg"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/logging"
	"github.com/llehouerou/shelf/internal/reconcile"
	"github.com/llehouerou/shelf/internal/scanner"
	"github.com/llehouerou/shelf/internal/tags"
)

// env is what every command works with, set up before it runs.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sql.DB
	lib     *library.Library
	scanner *scanner.Scanner
}

type options struct {
	configPath string
	extractor  reconcile.Extractor
	env        *env
}

// Option configures the root command.
type Option func(*options)

// WithExtractor replaces the default metadata reader.
func WithExtractor(e reconcile.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// NewRootCommand builds the shelf command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &options{extractor: tags.NewReader()}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:           "shelf",
		Short:         "Music library scanner",
		Long:          "shelf keeps a music library database in sync with folders on disk.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			o.env = e
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default: XDG config dir, then ./config.toml)")

	root.AddCommand(
		newFoldersCommand(o),
		newScanCommand(o),
		newRunCommand(o),
		newDuplicatesCommand(o),
		newSearchCommand(o),
		newStatsCommand(o),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) (*env, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		if _, statErr := os.Stat(o.configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.LoadFrom([]string{o.configPath})
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewWithWriter(cfg.GetLogConfig(), cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	database, err := dbutil.Open(cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	lib := library.New(database)

	ctx := cmd.Context()
	if err := lib.EnsureFTSIndex(ctx); err != nil {
		logger.Warn("search index check failed", zap.Error(err))
	}
	if len(cfg.Folders) > 0 {
		migrated, err := lib.MigrateFolders(ctx, cfg.Folders)
		if err != nil {
			logger.Warn("folder migration failed", zap.Error(err))
		}
		for _, f := range migrated {
			logger.Info("folder registered from config", zap.String("path", f.Path))
		}
	}

	s := scanner.New(lib, o.extractor, scanner.ConfigFrom(cfg),
		scanner.WithSink(newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())),
		scanner.WithLogger(logger.Named("scanner")),
	)

	return &env{cfg: cfg, logger: logger, db: database, lib: lib, scanner: s}, nil
}

// runE wraps a command body so the environment is released whether or
// not the body fails.
func (o *options) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, o.teardown())
		}()
		return fn(cmd, args)
	}
}

func (o *options) teardown() error {
	if o.env == nil {
		return nil
	}
	_ = o.env.logger.Sync()
	err := o.env.db.Close()
	o.env = nil
	return err
}

// interruptible returns a context cancelled by SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the shelf command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
