// Package cli provides command-line interface commands for the portsweep
// port scanner. This package implements the Cobra-based CLI structure with
// commands for scanning, serving the API, and inspecting port specifications.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. PORTSWEEP_SCANNING_CONCURRENCY.
const envPrefix = "PORTSWEEP"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portsweep",
	Short: "Concurrent TCP port scanner",
	Long: `portsweep scans a host for reachable TCP ports with a bounded number of
simultaneous connections. Each port is reported as open, closed, timeout or
error together with its connect latency and well-known service name.

Scans run from the command line or through the HTTP API started by
'portsweep serve', which can also run scans on a cron schedule.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Initialize structured logging after config is loaded
	initLogging()
}

// loadConfig loads the config file found by initConfig, or the defaults when
// there is none, and layers PORTSWEEP_* environment overrides on top.
func loadConfig() (*config.Config, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = cfgFile
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies the viper-visible keys that are set onto cfg.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("scanning.concurrency") {
		cfg.Scanning.Concurrency = viper.GetInt("scanning.concurrency")
	}
	if viper.IsSet("scanning.timeout") {
		cfg.Scanning.Timeout = viper.GetDuration("scanning.timeout")
	}
	if viper.IsSet("scanning.rate_limit") {
		cfg.Scanning.RateLimit = viper.GetFloat64("scanning.rate_limit")
	}
	if viper.IsSet("scanning.default_ports") {
		cfg.Scanning.DefaultPorts = viper.GetString("scanning.default_ports")
	}
	if viper.IsSet("resolver.nameserver") {
		cfg.Resolver.Nameserver = viper.GetString("resolver.nameserver")
	}
	if viper.IsSet("api.host") {
		cfg.API.Host = viper.GetString("api.host")
	}
	if viper.IsSet("api.port") {
		cfg.API.Port = viper.GetInt("api.port")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("logging.level"))
	}
	if viper.IsSet("logging.format") {
		cfg.Logging.Format = logging.LogFormat(viper.GetString("logging.format"))
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		// Reported again by the command that needs the config.
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.AddSource = logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logging.SetDefault(logging.NewDefault())
		logging.Warn("Failed to initialize logging, using defaults", "error", err)
		return
	}

	logging.SetDefault(logger)
	logging.Debug("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
}
