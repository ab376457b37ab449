package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/usecase/assistant"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to converse as",
			Value:       "local-user",
			Sources:     cli.EnvVars("PAISA_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation in the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintln(c.Root().Writer, "Chat started. Type 'exit' to quit.")

			var sessionID model.SessionID
			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "" {
					continue
				}
				if message == "exit" || message == "quit" {
					break
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Start()

				out, err := uc.HandleTurn(ctx, assistant.TurnInput{
					SessionID: sessionID,
					UserID:    userID,
					Utterance: message,
				})
				sp.Stop()
				if err != nil {
					fmt.Fprintf(c.Root().Writer, "error: %s\n", err)
					continue
				}

				sessionID = out.SessionID
				// Replies carry literal \n sequences per the output contract.
				fmt.Fprintf(c.Root().Writer, "%s\n", strings.ReplaceAll(out.Response, `\n`, "\n"))
			}

			if sessionID != "" {
				if err := uc.Sessions().End(ctx, sessionID); err != nil {
					fmt.Fprintf(c.Root().Writer, "warning: failed to save chat: %s\n", err)
				}
			}

			fmt.Fprintln(c.Root().Writer, "Chat saved. Goodbye.")
			return nil
		},
	}
}
