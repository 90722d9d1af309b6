// ABOUTME: The chat command: one research conversation from prompt to final report
// ABOUTME: Reads answers from stdin while a second goroutine prints transcript changes

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-research/internal/backend"
	"github.com/2389/coven-research/internal/conversation"
	"github.com/2389/coven-research/internal/store"
)

// errInputClosed is returned when stdin ends while questions are still open.
var errInputClosed = errors.New("input closed before all questions were answered")

type chatOptions struct {
	effort     string
	backendURL string
	noArchive  bool
}

func newChatCommand(a *app) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Start a research conversation",
		Long: `Start a research conversation.

The backend first asks a few clarifying questions; answer each on its own
line. Research starts once every question is answered, and progress is shown
until the final report arrives. Without a prompt argument an interactive form
asks for the prompt and the research effort.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.effort, "effort", "e", "", "Research effort: low, medium, or high (default from config)")
	cmd.Flags().StringVar(&opts.backendURL, "backend", "", "Research backend base URL (overrides config)")
	cmd.Flags().BoolVar(&opts.noArchive, "no-archive", false, "Do not save this session to the archive")

	return cmd
}

func (a *app) runChat(cmd *cobra.Command, prompt string, opts chatOptions) error {
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()

	effort := a.cfg.Effort()
	if opts.effort != "" {
		level, err := conversation.ParseLevel(opts.effort)
		if err != nil {
			return err
		}
		effort = level
	}

	if strings.TrimSpace(prompt) == "" {
		var err error
		prompt, effort, err = askPrompt(in, out, effort)
		if err != nil {
			return err
		}
	}

	baseURL := a.cfg.Backend.BaseURL
	if opts.backendURL != "" {
		baseURL = opts.backendURL
	}
	client := backend.New(baseURL,
		backend.WithClarifyTimeout(a.cfg.Backend.Timeout),
		backend.WithMaxFrameSize(a.cfg.Research.MaxFrameBytes),
		backend.WithLogger(a.logger),
	)

	var archiver conversation.Archiver
	if a.cfg.Archive.Enabled && !opts.noArchive {
		st, err := a.openArchive()
		if err != nil {
			return err
		}
		defer st.Close()
		archiver = st
	}

	sess, err := conversation.New(conversation.Options{
		Prompt:       prompt,
		Effort:       effort,
		Concurrency:  a.cfg.Backend.Concurrency,
		MaxFrameSize: a.cfg.Research.MaxFrameBytes,
		Backend:      client,
		Archiver:     archiver,
		Logger:       a.logger,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	a.logger.Debug("starting conversation",
		"session_id", sess.ID(),
		"effort", effort,
		"backend", baseURL)

	return converse(cmd.Context(), sess, in, newPrinter(out))
}

// converse runs the session to completion: one goroutine prints transcript
// changes, the other starts the session and feeds it answers.
func converse(ctx context.Context, sess *conversation.Session, in io.Reader, p *printer) error {
	g, gctx := errgroup.WithContext(ctx)

	changes, _ := sess.Transcript().Subscribe(gctx)
	lines := readLines(gctx, in)

	g.Go(func() error {
		for change := range changes {
			p.print(change)
		}
		p.endLive()
		return nil
	})

	g.Go(func() error {
		if err := sess.Start(ctx); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		return answerLoop(gctx, sess, lines)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	p.ensureReport(sess.FinalReport())
	if err := sess.Err(); err != nil {
		return fmt.Errorf("research failed: %w", err)
	}
	return nil
}

// answerLoop forwards non-blank input lines as answers until the session ends.
func answerLoop(ctx context.Context, sess *conversation.Session, lines <-chan string) error {
	for {
		select {
		case <-sess.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if sess.Phase() == conversation.PhaseCollectingAnswers {
					return errInputClosed
				}
				continue
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			err := sess.Answer(ctx, line)
			switch {
			case err == nil:
			case errors.Is(err, conversation.ErrNotAccepting):
				// Typing while research runs is harmless.
			case errors.Is(err, conversation.ErrSessionClosed):
				return nil
			default:
				return err
			}
		}
	}
}

// readLines delivers lines from r until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// askPrompt shows a form for the research prompt and effort.
func askPrompt(in io.Reader, out io.Writer, effort conversation.Level) (string, conversation.Level, error) {
	var prompt string
	choice := string(effort)

	options := make([]huh.Option[string], 0, len(conversation.Levels))
	for _, l := range conversation.Levels {
		options = append(options, huh.NewOption(l.Label(), string(l)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What would you like to research?").
				Placeholder("The history of tide mills in Brittany").
				Value(&prompt).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("prompt is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Research effort").
				Options(options...).
				Value(&choice),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if !isTerminal(in) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return "", "", fmt.Errorf("prompt form: %w", err)
	}
	return strings.TrimSpace(prompt), conversation.Level(choice), nil
}

// Compile-time check that the archive satisfies the session's archiver.
var _ conversation.Archiver = (*store.SQLiteStore)(nil)
