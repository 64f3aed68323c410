// Command chatstream is a terminal chat client for streaming chat backends.
//
// Usage:
//
//	chatstream --url https://chat.example.com/stream [flags]
//	ANTHROPIC_API_KEY=sk-... chatstream --backend anthropic [flags]
//	GEMINI_API_KEY=gk-...   chatstream --backend gemini --prompt "hello"
//
// Without --prompt an interactive TUI is started. With --prompt one turn is
// run and its reply written to stdout when it completes; failed turns print
// nothing there and the exit status reports the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/anthropic"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/gemini"
	cshttp "github.com/fwojciec/chatstream/http"
	csjson "github.com/fwojciec/chatstream/json"
)

// exitError carries the process exit status of a one-shot turn.
type exitError struct {
	code    int
	outcome chatstream.Outcome
}

func (e *exitError) Error() string {
	if e.outcome.Err != nil {
		return fmt.Sprintf("%s: %v", e.outcome.Kind, e.outcome.Err)
	}
	return string(e.outcome.Kind)
}

func (e *exitError) ExitCode() int { return e.code }

// exitCodes maps turn outcomes to process exit status.
var exitCodes = map[chatstream.OutcomeKind]int{
	chatstream.OutcomeCompleted:        0,
	chatstream.OutcomeTransportFailure: 1,
	chatstream.OutcomeThrottled:        3,
	chatstream.OutcomeQuotaExceeded:    4,
	chatstream.OutcomeCancelled:        130,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if notice := exit.outcome.Notice(); notice != "" {
			fmt.Fprintln(os.Stderr, notice)
		}
		os.Exit(exit.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "chatstream: %v\n", err)
	os.Exit(1)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(args, getenv, stderr)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	oneShot := cfg.Prompt != ""
	logger, closeLog, err := newLogger(cfg, stderr, oneShot)
	if err != nil {
		return err
	}
	defer closeLog()

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}
	opts := []chatstream.Option{chatstream.WithLogger(logger)}
	if cfg.MaxPending > 0 {
		opts = append(opts, chatstream.WithMaxPending(cfg.MaxPending))
	}
	if len(cfg.FragmentPaths) > 0 {
		opts = append(opts, chatstream.WithFragmentParser(csjson.NewPathParser(cfg.FragmentPaths...)))
	}
	ctrl := chatstream.NewController(transport, opts...)

	transcript, err := newTranscript(cfg)
	if err != nil {
		return err
	}

	var runOpts []chatstream.RunOption
	if cfg.KeepPartial {
		runOpts = append(runOpts, chatstream.WithKeepPartialOnCancel())
	}
	turn := withIdentity(bt.ControllerTurn(ctrl, runOpts...), cfg.ClientID, cfg.UserID)

	if oneShot {
		return runOnce(ctx, turn, transcript.Request(cfg.Prompt), stdout)
	}

	if err := bt.Run(ctx, bt.New(turn, &transcript, chatstream.DefaultTheme())); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// runOnce runs a single turn and writes the reply once the outcome is known,
// so a failed turn never leaves a truncated answer on stdout. A cancelled
// turn prints its partial reply only when it was kept.
func runOnce(ctx context.Context, turn bt.TurnFunc, req chatstream.Request, stdout io.Writer) error {
	res := turn(ctx, req, nil)
	if text := res.Message.Text; text != "" {
		fmt.Fprint(stdout, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(stdout)
		}
	}
	if code := exitCodes[res.Outcome.Kind]; code != 0 {
		return &exitError{code: code, outcome: res.Outcome}
	}
	return nil
}

// withIdentity stamps the configured client and user identifiers on every
// request.
func withIdentity(turn bt.TurnFunc, clientID, userID string) bt.TurnFunc {
	if clientID == "" && userID == "" {
		return turn
	}
	return func(ctx context.Context, req chatstream.Request, onUpdate func(chatstream.Update)) chatstream.Result {
		req.ClientID = clientID
		req.UserID = userID
		return turn(ctx, req, onUpdate)
	}
}

func newTransport(ctx context.Context, cfg Config) (chatstream.Transport, error) {
	switch cfg.Backend {
	case "anthropic":
		return anthropic.New(cfg.APIKey,
			anthropic.WithModel(cfg.Model),
			anthropic.WithMaxTokens(cfg.MaxTokens),
		), nil
	case "gemini":
		client, err := gemini.New(ctx, cfg.APIKey,
			gemini.WithModel(cfg.Model),
			gemini.WithMaxTokens(cfg.MaxTokens),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "http":
		var opts []cshttp.Option
		if cfg.APIKey != "" {
			opts = append(opts, cshttp.WithAPIKey(cfg.APIKey))
		}
		return cshttp.New(cfg.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newLogger builds the slog logger. The TUI owns the terminal, so without a
// log file interactive sessions discard logs.
func newLogger(cfg Config, stderr io.Writer, oneShot bool) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	var w io.Writer
	closeFn := func() {}
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case oneShot:
		w = stderr
	default:
		return slog.New(slog.DiscardHandler), closeFn, nil
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
}

// newTranscript starts an empty conversation carrying the context file, if
// any, as system instructions.
func newTranscript(cfg Config) (chatstream.Transcript, error) {
	var t chatstream.Transcript
	if cfg.ContextFile != "" {
		data, err := os.ReadFile(cfg.ContextFile)
		if err != nil {
			return chatstream.Transcript{}, fmt.Errorf("read context file: %w", err)
		}
		t.Context = strings.TrimSpace(string(data))
	}
	return t, nil
}
