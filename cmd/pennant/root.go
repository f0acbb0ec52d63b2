package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	logLevel  string
	logFormat string

	cfg    pennant.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "pennant",
		Short:         "Deterministic configuration evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from PENNANT_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: json or text (default from PENNANT_LOG_FORMAT)")

	root.AddCommand(
		newValidateCmd(a),
		newExplainCmd(a),
		newServeCmd(a),
	)
	return root
}

// init loads .env, then PENNANT_* variables, then applies flag overrides.
func (a *app) init(cmd *cobra.Command) error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg, err := pennant.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}

// newEngine creates an engine with namespace registered.
func (a *app) newEngine(namespace string, opts ...pennant.Option) (*pennant.Engine, error) {
	opts = append([]pennant.Option{pennant.WithConfig(a.cfg), pennant.WithLogger(a.logger)}, opts...)
	engine, err := pennant.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := engine.Namespace(namespace); err != nil {
		_ = engine.Close(context.Background())
		return nil, err
	}
	return engine, nil
}

// payloadFile is a configuration file read from disk.
type payloadFile struct {
	path string
	data []byte
	yaml bool
}

func readPayload(path string) (payloadFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return payloadFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return payloadFile{path: path, data: data, yaml: isYAML(path)}, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// namespace returns override, or the namespace the payload names.
func (p payloadFile) namespace(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if p.yaml {
		return codec.PeekNamespaceYAML(p.data)
	}
	return codec.PeekNamespace(p.data)
}

// load installs data as a full snapshot, or as a patch when patch is set.
func load(ctx context.Context, engine *pennant.Engine, namespace string, data []byte, yaml, patch bool) (pennant.HistoryEntry, error) {
	switch {
	case patch && yaml:
		return engine.PatchYAML(ctx, namespace, data)
	case patch:
		return engine.PatchPayload(ctx, namespace, data)
	case yaml:
		return engine.LoadYAML(ctx, namespace, data)
	default:
		return engine.LoadPayload(ctx, namespace, data)
	}
}
