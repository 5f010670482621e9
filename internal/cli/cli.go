package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/pkg/buildinfo"
	"github.com/matzehuels/pypifeed/pkg/integrations"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
	"github.com/matzehuels/pypifeed/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pypifeed"

	// configFileName is the name of the TOML config file inside configDir.
	configFileName = "config.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath  string       // --config; empty means the default location
	serviceRoot string       // --service-root; empty keeps the file value
	timeout     flagDuration // --timeout
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "pypifeed reads the Python Package Index",
		Long:         `pypifeed is a CLI tool for following PyPI: it lists the newest packages and latest releases from the PyPI RSS feeds, shows package metadata, and downloads release files.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			hooks := &logHooks{logger: c.Logger}
			observability.SetHTTPHooks(hooks)
			observability.SetFetchHooks(hooks)
			cmd.SetContext(withCommandLogger(cmd.Context(), c.Logger, cmd.CommandPath()))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+displayConfigPath()+")")
	root.PersistentFlags().StringVar(&c.serviceRoot, "service-root", "", "PyPI index base URL (overrides service_root)")
	root.PersistentFlags().Var(&c.timeout, "timeout", "HTTP timeout, e.g. 30s (overrides timeout)")

	// Register all subcommands
	root.AddCommand(c.feedCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Client Factory
// =============================================================================

// newClient loads the config and builds a PyPI client from it.
// The HTTP session is created here and owned by the command for its lifetime.
func (c *CLI) newClient() (*pypi.Client, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	session := integrations.NewHTTPClient(cfg.Timeout.Duration)
	return pypi.NewClient(session,
		pypi.WithServiceRoot(cfg.ServiceRoot),
		pypi.WithMaxBodySize(cfg.MaxFetchBytes),
	), nil
}

// =============================================================================
// Paths
// =============================================================================

// configDir returns the config directory using XDG standard (~/.config/pypifeed/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// defaultConfigPath returns the path of the config file in configDir.
func defaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func displayConfigPath() string {
	if p, err := defaultConfigPath(); err == nil {
		return p
	}
	return filepath.Join("~", ".config", appName, configFileName)
}

// =============================================================================
// Output Helpers
// =============================================================================

// writeJSON writes v to w as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
