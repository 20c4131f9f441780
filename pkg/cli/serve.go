package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/service/mcp"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for streamable HTTP (stdio is used when empty)",
			Sources:     cli.EnvVars("PROMPTSHOT_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, generatorFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve image generation and history as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			server := mcp.NewServer(ctrl, store)
			if addr == "" {
				return server.RunStdio(ctx)
			}

			return serveHTTP(ctx, addr, server.Handler())
		},
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("starting MCP server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "MCP server stopped", goerr.V("addr", addr))
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown MCP server")
		}
		return nil
	}
}
