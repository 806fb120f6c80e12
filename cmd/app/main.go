package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/norg/internal"
	pkgconfig "github.com/starford/norg/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	err := pkgconfig.Load(configPath, cfg)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && configPath == defaultConfigPath:
		// No config file: run on defaults.
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func withEngine(cmd *cli.Command, fn func(*internal.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := internal.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(engine)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func addNote(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("title")
	if title == "" {
		return fmt.Errorf("--title is required")
	}
	fields := map[string]string{}
	if tags := cmd.String("tags"); tags != "" {
		fields["tags"] = tags
	}
	return withEngine(cmd, func(e *internal.Engine) error {
		return e.Orch.AddNote(ctx, title, cmd.String("content"), fields)
	})
}

func syncNotes(ctx context.Context, cmd *cli.Command) error {
	return withEngine(cmd, func(e *internal.Engine) error {
		if title := cmd.String("title"); title != "" {
			return e.Orch.SyncOne(ctx, title, cmd.Bool("force"))
		}
		return e.Orch.SyncAll(ctx, cmd.Bool("force"))
	})
}

func deleteNote(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("title")
	if title == "" {
		return fmt.Errorf("--title is required")
	}
	return withEngine(cmd, func(e *internal.Engine) error {
		return e.Orch.DeleteNote(ctx, title)
	})
}

func listNotes(_ context.Context, cmd *cli.Command) error {
	filter := map[string]string{}
	if tag := cmd.String("tag"); tag != "" {
		filter["tags"] = tag
	}
	return withEngine(cmd, func(e *internal.Engine) error {
		notes, err := e.Orch.ListNotes(filter)
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Println(n.Title)
		}
		return nil
	})
}

func queryNotes(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: query <sql>")
	}
	return withEngine(cmd, func(e *internal.Engine) error {
		res, err := e.StoreObs.Query(ctx, query)
		if err != nil {
			return err
		}
		fmt.Printf("| %s |\n", strings.Join(res.Columns, " | "))
		seps := make([]string, len(res.Columns))
		for i := range seps {
			seps[i] = "---"
		}
		fmt.Printf("|%s|\n", strings.Join(seps, "|"))
		for _, row := range res.Rows {
			vals := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				vals[i] = row[col]
			}
			fmt.Printf("| %s |\n", strings.Join(vals, " | "))
		}
		return nil
	})
}

func watchVault(ctx context.Context, cmd *cli.Command) error {
	return withEngine(cmd, func(e *internal.Engine) error {
		if err := e.Orch.SyncAll(ctx, false); err != nil {
			e.Logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		return internal.Watch(ctx, e)
	})
}

func listObservers(_ context.Context, cmd *cli.Command) error {
	return withEngine(cmd, func(e *internal.Engine) error {
		for _, o := range e.Registry.Observers() {
			fmt.Printf("%s (priority %d)\n", o.Name(), o.Priority())
		}
		return nil
	})
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	return withEngine(cmd, func(e *internal.Engine) error {
		return internal.ServeMCP(e)
	})
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: defaultConfigPath,
		Value:       defaultConfigPath,
		Sources:     cli.EnvVars("NORG_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "norg",
		Usage:  "Note directory sync engine with pluggable observers and an embedded SQL renderer",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and directory watcher",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:  "add",
				Usage: "Add a note and run the observer pipeline",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "title", Usage: "Note title"},
					&cli.StringFlag{Name: "content", Usage: "Note body"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
				},
				Action: addNote,
			},
			{
				Name:  "sync",
				Usage: "Sync one note or the whole vault",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "title", Usage: "Sync only this note"},
					&cli.BoolFlag{Name: "force", Usage: "Skip the unchanged-content check"},
				},
				Action: syncNotes,
			},
			{
				Name:  "delete",
				Usage: "Delete a note from the vault and the store",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "title", Usage: "Note title"},
				},
				Action: deleteNote,
			},
			{
				Name:  "list",
				Usage: "List note titles",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
				},
				Action: listNotes,
			},
			{
				Name:      "query",
				Usage:     "Run a read-only SQL query against the note store",
				ArgsUsage: "<sql>",
				Flags:     []cli.Flag{configFlag},
				Action:    queryNotes,
			},
			{
				Name:   "watch",
				Usage:  "Watch the vault and sync changed notes (no HTTP server)",
				Flags:  []cli.Flag{configFlag},
				Action: watchVault,
			},
			{
				Name:   "observers",
				Usage:  "Show registered observers in dispatch order",
				Flags:  []cli.Flag{configFlag},
				Action: listObservers,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  []cli.Flag{configFlag},
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
