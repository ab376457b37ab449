package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/server"
	"github.com/n-khatri/paisa/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg          config
		addr         string
		enableSpeech bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("PAISA_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "speech",
			Usage:       "Enable audio input and spoken replies",
			Sources:     cli.EnvVars("PAISA_SPEECH"),
			Destination: &enableSpeech,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the assistant HTTP server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}

			var serverOpts []server.Option
			if enableSpeech {
				sp, err := adapter.NewSpeech(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to create speech adapter")
				}
				serverOpts = append(serverOpts, server.WithSpeech(sp))
			}

			srv := &http.Server{
				Addr:    addr,
				Handler: server.New(uc, serverOpts...).Handler(),
			}

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("server started", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "server failed")
				}
			case <-ctx.Done():
			}

			// Flush live sessions before the process exits.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.From(ctx).Warn("server shutdown failed", "error", err)
			}
			if err := uc.Sessions().Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to flush sessions")
			}
			return nil
		},
	}
}
