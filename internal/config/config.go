// Package config loads server startup configuration from an optional TOML
// file with individual command-line flags overriding file values, mirroring
// the flag-precedence style of the teacher's cmd/ublk-mem/main.go.
package config

import (
	"flag"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/behrlich/kvsrv/internal/constants"
)

// Config holds every value the server needs at startup.
type Config struct {
	Port        int    `toml:"port"`
	Bind        string `toml:"bind"`
	Dir         string `toml:"dir"`
	DBFilename  string `toml:"dbfilename"`
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the configuration used when neither a file nor flags
// supply a value.
func Default() Config {
	return Config{
		Port:       constants.DefaultPort,
		Bind:       constants.DefaultBindAddr,
		Dir:        ".",
		DBFilename: "dump.rdb",
		LogLevel:   "info",
	}
}

// Load builds a Config from args (typically os.Args[1:]): it starts from
// Default(), applies an optional TOML file named by -config, then applies
// any flags explicitly set on the command line, which always win over the
// file. Flags not passed on the command line never override a value the
// file already set.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("kvsrv", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a TOML configuration file")
	port := fs.Int("port", cfg.Port, "TCP port to listen on")
	bind := fs.String("bind", cfg.Bind, "address to bind")
	dir := fs.String("dir", cfg.Dir, "working directory for persisted data")
	dbFilename := fs.String("dbfilename", cfg.DBFilename, "RDB-style snapshot filename")
	metricsAddr := fs.String("metrics-addr", "", "address to serve /metrics on (empty disables)")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "bind":
			cfg.Bind = *bind
		case "dir":
			cfg.Dir = *dir
		case "dbfilename":
			cfg.DBFilename = *dbFilename
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	return cfg, nil
}

// EnsureDir creates cfg.Dir if it does not already exist.
func (c Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0o755)
}
