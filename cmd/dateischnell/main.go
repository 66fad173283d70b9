// dateischnell is a self-hosted file browser for large files: chunked
// content access, line indexing and streaming search over a confined
// root directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/dateischnell/internal/config"
	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/store"
	"github.com/codefionn/dateischnell/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	opts, parseErr := parseFlags(os.Args[1:])
	if parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.rootDir != "" {
		cfg.RootDir = opts.rootDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Info("dateischnell starting")
	logger.Debug("Configuration loaded: root_dir=%s, addr=%s, log_level=%s",
		cfg.RootDir, cfg.Addr, cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Warn("Failed to close database: %v", closeErr)
		}
	}()

	srv, err := web.NewServer(cfg, st)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info("Serving %s on http://%s", cfg.RootDir, srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received %s, shutting down", sig)

	return srv.Stop()
}

type options struct {
	configPath string
	addr       string
	rootDir    string
	logLevel   string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("dateischnell", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "path to the configuration file")
	fs.StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	fs.StringVar(&opts.rootDir, "root", "", "served root directory (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, none")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}
