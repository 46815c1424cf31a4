// Command vaultpilot is the CLI for the vaultpilot assistant.
//
// Usage:
//
//	vaultpilot chat --config config.yaml
//	vaultpilot index --config config.yaml
//	vaultpilot schema > config-schema.json
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vaultpilot/vaultpilot"
	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Chat    ChatCmd    `cmd:"" help:"Start an interactive chat session."`
	Index   IndexCmd   `cmd:"" help:"Index the vault for retrieval."`
	Schema  SchemaCmd  `cmd:"" help:"Generate JSON Schema for the config file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(vaultpilot.GetVersion().String())
	return nil
}

// loadConfig loads the config file and applies CLI logging overrides.
func (cli *CLI) loadConfig() (*config.Config, func() error, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}

	opts := logger.Options{
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
		Format: cfg.Logging.Format,
	}
	if cli.LogLevel != "" {
		opts.Level = cli.LogLevel
	}
	if cli.LogFile != "" {
		opts.File = cli.LogFile
	}
	if cli.LogFormat != "" {
		opts.Format = cli.LogFormat
	}

	closer, err := logger.Setup(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, closer, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("vaultpilot"),
		kong.Description("vaultpilot - an agentic assistant for your markdown vault"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
