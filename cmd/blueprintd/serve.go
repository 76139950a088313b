package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/internal/policy"
	"github.com/kevinpbuckley/blueprintd/internal/scheduler"
	"github.com/kevinpbuckley/blueprintd/internal/store"
	"github.com/kevinpbuckley/blueprintd/internal/validation"
	"github.com/kevinpbuckley/blueprintd/internal/workspace"
	"github.com/kevinpbuckley/blueprintd/pkg/mcp"
)

var (
	flagDBPath   string
	flagMemory   bool
	flagLogLevel string
	flagAutosave string
	flagCatalog  string
	flagRules    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve graph-editing tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}
		if flagMemory {
			cfg.MemoryStore = true
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagAutosave != "" {
			cfg.AutosaveCron = flagAutosave
		}
		if flagCatalog != "" {
			cfg.TypeCatalog = flagCatalog
		}
		if flagRules != "" {
			cfg.PolicyRules = flagRules
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagDBPath, "db", "", "path to the libSQL database file")
	serveCmd.Flags().BoolVar(&flagMemory, "memory", false, "use an in-memory store (documents are lost on exit)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&flagAutosave, "autosave", "", "autosave cron schedule (5-field)")
	serveCmd.Flags().StringVar(&flagCatalog, "type-catalog", "", "path to a JSON type catalog; restricts named-type resolution")
	serveCmd.Flags().StringVar(&flagRules, "policy-rules", "", "path to a JSON file of CEL connection rules")
}

func serve(cfg Config) error {
	// Stdout carries the MCP transport, so logs go to stderr.
	logger := newLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := pintype.NewCatalogRegistry()
	if cfg.TypeCatalog != "" {
		entries, err := loadCatalogFile(cfg.TypeCatalog)
		if err != nil {
			return err
		}
		registry.Load(entries)
		logger.Info("type catalog loaded", "path", cfg.TypeCatalog, "entries", len(entries))
	}

	validator, err := validation.NewPayloadValidator()
	if err != nil {
		return err
	}

	ws := workspace.New(st, logger)

	if cfg.PolicyRules != "" {
		rules, err := loadRulesFile(cfg.PolicyRules)
		if err != nil {
			return err
		}
		ruleSchema, err := policy.NewRuleSchema(graph.DefaultSchema{}, rules)
		if err != nil {
			return fmt.Errorf("policy rules %s: %w", cfg.PolicyRules, err)
		}
		ws.SetConnectionPolicy(ruleSchema)
		logger.Info("connection rules loaded", "path", cfg.PolicyRules, "rules", len(rules))
	}

	saver, err := scheduler.NewAutosaver(ws, cfg.AutosaveCron, logger)
	if err != nil {
		return fmt.Errorf("invalid autosave schedule %q: %w", cfg.AutosaveCron, err)
	}
	if err := saver.Start(ctx); err != nil {
		return err
	}
	defer saver.Stop()

	srv := mcp.NewBlueprintServer(mcp.BlueprintServerDeps{
		Workspace: ws,
		Registry:  registry,
		Validator: validator,
		Logger:    logger,
	})

	logger.Info("blueprintd serving on stdio", "version", version)
	serveErr := srv.Serve(ctx)
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("server stopped", "error", serveErr)
	}

	// Flush unsaved edits before exiting; the signal context is done.
	if n, err := ws.SaveDirty(context.Background()); err != nil {
		logger.Error("final save failed", "error", err)
	} else if n > 0 {
		logger.Info("saved dirty documents on shutdown", "count", n)
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.MemoryStore {
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, err
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newLogger(w *os.File, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func loadRulesFile(path string) ([]policy.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []policy.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("invalid policy rules %s: %w", path, err)
	}
	return rules, nil
}

func loadCatalogFile(path string) ([]pintype.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []pintype.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid type catalog %s: %w", path, err)
	}
	return entries, nil
}
