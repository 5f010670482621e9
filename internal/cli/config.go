package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
)

// Config is the contents of config.toml. Missing keys keep their defaults.
//
//	service_root    = "https://pypi.org"
//	timeout         = "10s"
//	max_fetch_bytes = 0   # 0 = unlimited
type Config struct {
	ServiceRoot   string   `toml:"service_root"`
	Timeout       duration `toml:"timeout"`
	MaxFetchBytes int64    `toml:"max_fetch_bytes"`
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig() Config {
	return Config{
		ServiceRoot: pypi.DefaultServiceRoot,
		Timeout:     duration{integrations.DefaultTimeout},
	}
}

// duration is a time.Duration written as a Go duration string ("30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// flagDuration is a --timeout value that remembers whether it was given.
type flagDuration struct {
	duration
	set bool
}

func (d *flagDuration) Set(s string) error {
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return err
	}
	d.set = true
	return nil
}

func (d *flagDuration) Type() string { return "duration" }

// validate rejects values the client cannot work with.
func (cfg Config) validate() error {
	switch {
	case !strings.HasPrefix(cfg.ServiceRoot, "http://") && !strings.HasPrefix(cfg.ServiceRoot, "https://"):
		return errors.New(errors.ErrCodeInvalidInput, "service_root must be an http(s) URL, got %q", cfg.ServiceRoot)
	case cfg.Timeout.Duration < 0:
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative, got %s", cfg.Timeout)
	case cfg.MaxFetchBytes < 0:
		return errors.New(errors.ErrCodeInvalidInput, "max_fetch_bytes must not be negative, got %d", cfg.MaxFetchBytes)
	}
	return nil
}

// loadConfig reads the config file selected by --config, or the default
// location, and applies --service-root and --timeout on top.
func (c *CLI) loadConfig() (Config, error) {
	cfg, err := c.loadConfigFile()
	if err != nil {
		return Config{}, err
	}
	if c.serviceRoot == "" && !c.timeout.set {
		return cfg, nil
	}

	if c.serviceRoot != "" {
		cfg.ServiceRoot = strings.TrimRight(c.serviceRoot, "/")
	}
	if c.timeout.set {
		cfg.Timeout = c.timeout.duration
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

// loadConfigFile reads the config file alone. A missing default file is not
// an error; a missing explicit one is.
func (c *CLI) loadConfigFile() (Config, error) {
	path, explicit := c.configPath, c.configPath != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return defaultConfig(), nil
		}
		path = p
	}

	cfg, err := readConfig(path)
	if os.IsNotExist(err) && !explicit {
		c.Logger.Debug("no config file, using defaults", "path", path)
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	c.Logger.Debug("loaded config", "path", path, "service_root", cfg.ServiceRoot, "timeout", cfg.Timeout)
	return cfg, nil
}

// readConfig decodes path on top of the defaults.
// Unknown keys are reported as an error so typos don't go unnoticed.
func readConfig(path string) (Config, error) {
	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, err
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.ServiceRoot = strings.TrimRight(cfg.ServiceRoot, "/")
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// configCommand creates the config inspection command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the pypifeed configuration",
	}

	cmd.AddCommand(c.configPathCommand())
	cmd.AddCommand(c.configShowCommand())

	return cmd
}

// configPathCommand creates the "config path" subcommand.
func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.configPath != "" {
				fmt.Fprintln(cmd.OutOrStdout(), c.configPath)
				return nil
			}
			path, err := defaultConfigPath()
			if err != nil {
				return fmt.Errorf("get config dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// configShowCommand creates the "config show" subcommand.
func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}
