package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vineetp6/serving/internal/audit"
	"github.com/vineetp6/serving/internal/config"
	"github.com/vineetp6/serving/internal/engine"
	"github.com/vineetp6/serving/internal/httpapi"
	"github.com/vineetp6/serving/internal/serving"
	"github.com/vineetp6/serving/internal/source"
	"github.com/vineetp6/serving/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
	)
	cfg := config.Config{
		Addr:                ":8500",
		ModelsDir:           "",
		RetainVersions:      2,
		DrainTimeoutSeconds: 30,
		OutputEncoding:      string(types.EncodingValues),
	}

	root := &cobra.Command{
		Use:           "servingd",
		Short:         "Versioned model serving daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath != "" {
				fileCfg, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				// Flags set on the command line win over the file.
				cfg = merge(fileCfg, cfg, cmd)
			}
			return run(cfg, logLevel)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "Path to a yaml/json/toml config file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address, e.g. :8500")
	root.Flags().StringVar(&cfg.ModelsDir, "models-dir", cfg.ModelsDir, "Base directory of <name>/<version> model dirs to load at startup")
	root.Flags().IntVar(&cfg.RetainVersions, "retain-versions", cfg.RetainVersions, "Available versions kept per model (0=unlimited)")
	root.Flags().IntVar(&cfg.DrainTimeoutSeconds, "drain-timeout", cfg.DrainTimeoutSeconds, "Seconds to wait for in-flight calls on unload")
	root.Flags().StringVar(&cfg.OutputEncoding, "output-encoding", cfg.OutputEncoding, "Default tensor encoding: values|content")
	root.Flags().StringVar(&cfg.AuditDB, "audit-db", cfg.AuditDB, "Path to a sqlite file for lifecycle event history")
	return root
}

// merge starts from the file config and reapplies any flag the user set
// explicitly on the command line.
func merge(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	if cmd.Flags().Changed("addr") {
		out.Addr = flags.Addr
	}
	if cmd.Flags().Changed("models-dir") {
		out.ModelsDir = flags.ModelsDir
	}
	if cmd.Flags().Changed("retain-versions") {
		out.RetainVersions = flags.RetainVersions
	}
	if cmd.Flags().Changed("drain-timeout") {
		out.DrainTimeoutSeconds = flags.DrainTimeoutSeconds
	}
	if cmd.Flags().Changed("output-encoding") {
		out.OutputEncoding = flags.OutputEncoding
	}
	if cmd.Flags().Changed("audit-db") {
		out.AuditDB = flags.AuditDB
	}
	if out.Addr == "" {
		out.Addr = flags.Addr
	}
	return out
}

func run(cfg config.Config, logLevel string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()

	var events serving.EventPublisher
	if cfg.AuditDB != "" {
		store, err := audit.Open(cfg.AuditDB)
		if err != nil {
			return err
		}
		defer store.Close()
		events = store
	}

	core := serving.NewWithConfig(serving.Config{
		Loader:         &engine.Loader{RequirePath: true},
		RetainVersions: cfg.RetainVersions,
		DrainTimeout:   time.Duration(cfg.DrainTimeoutSeconds) * time.Second,
		OutputEncoding: types.TensorEncoding(cfg.OutputEncoding),
		Events:         events,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	if cfg.ModelsDir != "" {
		sources, err := source.ScanDir(cfg.ModelsDir)
		if err != nil {
			return err
		}
		for _, src := range sources {
			if err := core.Load(baseCtx, src); err != nil {
				logger.Error().Err(err).Str("model", src.Name).Int64("version", src.Version).Msg("load failed")
				continue
			}
			logger.Info().Str("model", src.Name).Int64("version", src.Version).Str("path", src.Path).Msg("published")
		}
	}

	httpapi.SetLogger(logger)
	httpapi.SetBaseContext(baseCtx)
	if cfg.MaxBodyBytes > 0 {
		httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(core)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("servingd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := core.Coordinator.DrainAll(); err != nil {
		logger.Error().Err(err).Msg("drain on shutdown")
	}
	return nil
}
