package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/mcpserver"
	"github.com/starford/docvault/internal/migrate"
)

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := open(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcpserver.New(mcpserver.Deps{
		Vault:    rt.caps,
		Index:    rt.index,
		Items:    rt.items,
		Intake:   rt.intake,
		Contacts: rt.db,
	}, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.Serve(ctx, os.Stdin, app.out)
}

// IngestResult is the outcome of one file in RunIngest.
type IngestResult struct {
	File  string     `json:"file"`
	Row   intake.Row `json:"row"`
	Error string     `json:"error,omitempty"`
}

// RunIngest runs each PDF through the intake pipeline, one after another,
// and writes one JSON result per file. It fails if any file failed.
func RunIngest(ctx context.Context, files []string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := open(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()
	if _, err := rt.requireVault(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(app.out)
	failed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := IngestResult{File: f}
		data, err := os.ReadFile(f)
		if err == nil {
			res.Row, err = rt.intake.Ingest(ctx, intake.Upload{Filename: filepath.Base(f), Data: data})
		}
		if err != nil {
			failed++
			res.Error = err.Error()
			rt.logger.Error("ingest failed", slog.String("file", f), slog.String("error", err.Error()))
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// RunIndex loads the vault index and writes it as JSON.
func RunIndex(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := open(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()
	if _, err := rt.requireVault(ctx); err != nil {
		return err
	}

	idx, err := rt.index.LoadIndex(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(idx)
}

// RunMigrate converts legacy vault files into the canonical layout and
// writes the report as JSON.
func RunMigrate(ctx context.Context, dryRun bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := open(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()
	c, err := rt.requireVault(ctx)
	if err != nil {
		return err
	}

	rep, err := migrate.New(c.FS(), dryRun, rt.logger).Run(ctx)
	if rep != nil {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			err = errors.Join(err, encErr)
		}
	}
	return err
}
