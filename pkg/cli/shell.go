package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/usecase/generate"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

const shellHelp = `Type a prompt and press Enter to generate an image.
Commands:
  :retry     generate again with the current prompt
  :reset     clear the result and the prompt
  :history   list past generations
  :clear     delete all past generations
  :help      show this message
  :quit      exit
`

func shellCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, generatorFlags(&cfg)...)

	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive prompt for generating images",
		Flags: flags,
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

			historyFile := ""
			if dir, err := os.UserCacheDir(); err == nil {
				historyFile = filepath.Join(dir, "promptshot", "shell_history")
				_ = os.MkdirAll(filepath.Dir(historyFile), 0755)
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "prompt> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			sh := &shell{
				ctrl:     ctrl,
				store:    store,
				out:      rl.Stdout(),
				progress: rl.Stderr(),
			}
			fmt.Fprint(sh.out, shellHelp)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read line")
				}

				if sh.handle(ctx, line) {
					return nil
				}
			}
		},
	}
}

// shell executes lines of the interactive prompt
type shell struct {
	ctrl     *generate.Controller
	store    *history.Store
	out      io.Writer
	progress io.Writer
}

// handle processes one input line and reports whether the shell should exit
func (s *shell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)

	switch line {
	case "":
		return false
	case ":quit", ":exit", ":q":
		return true
	case ":help":
		fmt.Fprint(s.out, shellHelp)
	case ":reset":
		if s.ctrl.Reset() {
			fmt.Fprintln(s.out, "Ready for a new prompt")
		}
	case ":history":
		printHistory(s.out, s.store.Entries(ctx))
	case ":clear":
		s.store.Clear(ctx)
		fmt.Fprintln(s.out, "History cleared")
	case ":retry":
		s.submit(ctx)
	default:
		if strings.HasPrefix(line, ":") {
			fmt.Fprintf(s.out, "Unknown command: %s (type :help)\n", line)
			return false
		}
		if err := s.ctrl.SetPrompt(line); err != nil {
			fmt.Fprintln(s.out, err.Error())
			return false
		}
		s.submit(ctx)
	}

	return false
}

func (s *shell) submit(ctx context.Context) {
	entry, err := submitWithSpinner(ctx, s.ctrl, s.progress)
	if err != nil {
		fmt.Fprintln(s.out, userError(s.ctrl, err).Error())
		return
	}

	fmt.Fprintf(s.out, "%s\n(saved to history as %s, :reset to start over)\n", entry.ImageURL, entry.ID)
}
