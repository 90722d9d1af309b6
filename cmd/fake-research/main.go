// ABOUTME: Minimal fake research backend for local runs and E2E testing
// ABOUTME: Usage: fake-research [-addr localhost:8000] [-questions 3] [-delay 150ms] [-stream-clarify]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389/coven-research/internal/fakebackend"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "HTTP listen address")
	questions := flag.Int("questions", 3, "Number of clarifying questions to ask (max 3)")
	delay := flag.Duration("delay", 150*time.Millisecond, "Pause between research frames")
	report := flag.String("report", "", "Final report text (default echoes the query)")
	streamClarify := flag.Bool("stream-clarify", false, "Answer clarification as an event stream")
	failResearch := flag.Int("fail-research", 0, "Fail research with this HTTP status")
	flag.Parse()

	script := fakebackend.DefaultScript()
	if *questions < len(script.Questions) {
		script.Questions = script.Questions[:max(*questions, 0)]
	}
	script.FrameDelay = *delay
	script.Report = *report
	script.StreamClarify = *streamClarify
	script.ResearchStatus = *failResearch

	if err := run(*addr, script); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, script fakebackend.Script) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fake := fakebackend.New(script, logger)
	defer fake.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           fake,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "fake research backend listening on http://%s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
