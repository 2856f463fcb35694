package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/docvault/internal"
	"github.com/starford/docvault/internal/capability"
	pkgconfig "github.com/starford/docvault/pkg/config"
)

var version = "dev"

// options loads the config and turns global flags into application options.
func options(cmd *cli.Command, extra ...internal.Option) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg,
		pkgconfig.WithEnvPrefix(internal.EnvPrefix),
		pkgconfig.AllowMissing(),
	); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVaultPath(cmd.String("vault")),
		internal.WithVersion(version),
	}
	return append(opts, extra...), nil
}

// cliOptions route logs to stderr so stdout carries only JSON results, and
// prompt for a vault folder when running in a terminal.
func cliOptions() []internal.Option {
	opts := []internal.Option{internal.WithLogOutput(os.Stderr)}
	if interactive() {
		opts = append(opts, internal.WithPicker(&capability.PromptPicker{In: os.Stdin, Out: os.Stderr}))
	}
	return opts
}

func interactive() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "docvault",
		Usage:   "Local document vault with OCR intake, metadata and client matching",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "vault",
				Usage: "Vault directory to select at startup (overrides vault.path)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE feed and vault watcher",
				Action: serve,
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools on stdin/stdout",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd, internal.WithLogOutput(os.Stderr))
					if err != nil {
						return err
					}
					return internal.RunMCP(ctx, opts...)
				},
			},
			{
				Name:      "ingest",
				Usage:     "Run PDFs through OCR and metadata extraction",
				ArgsUsage: "<file.pdf>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files := cmd.Args().Slice()
					if len(files) == 0 {
						return fmt.Errorf("at least one PDF is required")
					}
					opts, err := options(cmd, cliOptions()...)
					if err != nil {
						return err
					}
					return internal.RunIngest(ctx, files, opts...)
				},
			},
			{
				Name:  "index",
				Usage: "Print the vault index as JSON",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd, cliOptions()...)
					if err != nil {
						return err
					}
					return internal.RunIndex(ctx, opts...)
				},
			},
			{
				Name:  "migrate",
				Usage: "Convert legacy vault files to the current layout",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would change without writing",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd, cliOptions()...)
					if err != nil {
						return err
					}
					return internal.RunMigrate(ctx, cmd.Bool("dry-run"), opts...)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
