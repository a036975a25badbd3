package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rtgraph/graphgen/internal/config"
	"rtgraph/graphgen/internal/db"
	"rtgraph/graphgen/internal/logging"
)

const dbFileName = ".graphgen.db"

var (
	dbPath     string
	configPath string
	logLevel   string

	cfg    = config.Default()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "graphgen",
	Short:         "Build and analyze interaction graphs from social event streams",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		l, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to "+dbFileName+" build ledger")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// DiscoverDB finds the ledger path using priority: env > flag > config > walk-up > XDG fallback.
// With create set, the XDG fallback is created when nothing else exists.
func DiscoverDB(create bool) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("GRAPHGEN_DB"); envPath != "" {
		return envPath, nil
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil || create {
			return dbPath, nil
		}
		return "", fmt.Errorf("ledger not found at --db path: %s", dbPath)
	}

	// 3. Config file
	if cfg.DB != "" {
		return cfg.DB, nil
	}

	// 4. Walk up from CWD
	if dir, err := os.Getwd(); err == nil {
		if found, ok := walkUp(dir, dbFileName); ok {
			return found, nil
		}
	}

	// 5. XDG fallback
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no %s found and no home directory: %w", dbFileName, err)
	}
	xdgPath := filepath.Join(home, ".local", "share", "graphgen", "graphgen.db")
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath, nil
	}
	if !create {
		return "", fmt.Errorf("no %s found (set GRAPHGEN_DB, use --db, or run a build first)", dbFileName)
	}
	if err := os.MkdirAll(filepath.Dir(xdgPath), 0o755); err != nil {
		return "", fmt.Errorf("creating ledger directory: %w", err)
	}
	return xdgPath, nil
}

func walkUp(dir, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// OpenDatabase discovers and opens the build ledger
func OpenDatabase(create bool) (*db.DB, error) {
	path, err := DiscoverDB(create)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening ledger", zap.String("path", path))
	return db.OpenDB(path)
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
