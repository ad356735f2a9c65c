// Package main is the entry point for the MCP gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const defaultConfigPath = "configs/avamcp.yaml"

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), flags, logger); err != nil {
		logger.Error("gateway exited with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseFlags parses command line flags. Every flag falls back to an
// AVAMCP_* environment variable.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("avamcp", flag.ContinueOnError)

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault("AVAMCP_CONFIG_PATH", defaultConfigPath),
		"Path to configuration file")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("AVAMCP_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the config file")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("AVAMCP_LOG_FORMAT", ""),
		"Log format (json, console); overrides the config file")
	fs.BoolVar(&flags.showVersion, "version", getEnvBool("AVAMCP_SHOW_VERSION", false),
		"Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "avamcp version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// initLogger builds the bootstrap logger used until the configuration is
// loaded.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(logConfig(config.LoggingConfig{}, flags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// logConfig merges the logging section with flag overrides.
func logConfig(cfg config.LoggingConfig, flags cliFlags) observability.LogConfig {
	lc := observability.DefaultLogConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	if cfg.Output != "" {
		lc.Output = cfg.Output
	}
	if flags.logLevel != "" {
		lc.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		lc.Format = flags.logFormat
	}
	return lc
}

// tracerConfig maps the tracing section onto the tracer configuration.
func tracerConfig(cfg config.TracingConfig) observability.TracerConfig {
	tc := observability.TracerConfig{
		ServiceName:  "avamcp",
		Enabled:      cfg.Enabled,
		SamplingRate: cfg.SamplingRate,
		OTLPEndpoint: cfg.Endpoint,
	}
	if cfg.ServiceName != "" {
		tc.ServiceName = cfg.ServiceName
	}
	return tc
}
