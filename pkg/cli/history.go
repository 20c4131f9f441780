package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		limit  int64
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of entries to list (0 lists all)",
			Value:       0,
			Sources:     cli.EnvVars("PROMPTSHOT_HISTORY_LIMIT"),
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print history as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List past generations, newest first",
		Flags: flags,
		Commands: []*cli.Command{
			historyClearCommand(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)
			if limit < 0 {
				return goerr.New("limit must not be negative", goerr.V("limit", limit))
			}

			kvs, closeKVS, err := cfg.newKVS(ctx)
			if err != nil {
				return err
			}
			defer closeKVS()

			entries := history.New(kvs).Load(ctx)
			if limit > 0 && int64(len(entries)) > limit {
				entries = entries[:limit]
			}

			if asJSON {
				encoder := json.NewEncoder(c.Root().Writer)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(entries); err != nil {
					return goerr.Wrap(err, "failed to encode history")
				}
				return nil
			}

			printHistory(c.Root().Writer, entries)
			return nil
		},
	}
}

func historyClearCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all past generations",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			kvs, closeKVS, err := cfg.newKVS(ctx)
			if err != nil {
				return err
			}
			defer closeKVS()

			history.New(kvs).Clear(ctx)
			fmt.Fprintln(c.Root().Writer, "History cleared")
			return nil
		},
	}
}

func printHistory(w io.Writer, entries []model.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet")
		return
	}

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.ID,
			formatTimestamp(e.Timestamp),
			e.ImageURL,
			e.Prompt,
		)
	}
}

// formatTimestamp renders ts in local time. Unparsable values are shown as stored.
func formatTimestamp(ts model.Timestamp) string {
	t, ok := ts.Time()
	if !ok {
		return string(ts)
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
