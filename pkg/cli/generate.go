package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/usecase/generate"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

func generateCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, generatorFlags(&cfg)...)

	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Generate an image from a prompt and record it in history",
		ArgsUsage: "<prompt...>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			kvs, closeKVS, err := cfg.newKVS(ctx)
			if err != nil {
				return err
			}
			defer closeKVS()

			store := history.New(kvs)
			ctrl, err := cfg.newController(ctx, store)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.SetPrompt(strings.Join(c.Args().Slice(), " ")); err != nil {
				return err
			}

			entry, err := submitWithSpinner(ctx, ctrl, os.Stderr)
			if err != nil {
				return userError(ctrl, err)
			}

			fmt.Fprintln(c.Root().Writer, entry.ImageURL)
			return nil
		},
	}
}

// submitWithSpinner runs Submit while showing progress on w
func submitWithSpinner(ctx context.Context, ctrl *generate.Controller, w io.Writer) (*model.HistoryEntry, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " Generating image..."
	s.Start()
	defer s.Stop()

	return ctrl.Submit(ctx)
}

// userError replaces err with the message the controller shows to the user.
// Causes are already logged by the controller.
func userError(ctrl *generate.Controller, err error) error {
	if msg := ctrl.State().Message; msg != "" {
		return goerr.New(msg)
	}
	return err
}
