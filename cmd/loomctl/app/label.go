package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomstudio/loomctl/internal/httpclient"
	"github.com/loomstudio/loomctl/internal/jobs"
	"github.com/loomstudio/loomctl/internal/session"
)

var labelCmd = &cobra.Command{
	Use:   "label <dataset>",
	Short: "Submit an image labeling job and follow it to completion",
	Long: `Submit a labeling job for the named dataset and poll its status until the
job finishes, printing progress as the server reports it.`,
	Args: cobra.ExactArgs(1),
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().StringSlice("labels", nil, "Labels to apply (comma-separated)")
}

// progressPrinter prints each new progress line once. The coordinator
// delivers snapshots from its poll goroutine.
type progressPrinter struct {
	mu   sync.Mutex
	last string
}

func (p *progressPrinter) observe(snap session.Snapshot) {
	if snap.Progress == nil || snap.Progress.Message == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Progress.Message == p.last {
		return
	}
	p.last = snap.Progress.Message
	fmt.Println(snap.Progress.Message)
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	labels, err := cmd.Flags().GetStringSlice("labels")
	if err != nil {
		return fmt.Errorf("failed to read labels flag: %w", err)
	}

	client := httpclient.NewDefaultClient(cfg.Server.GetRequestTimeout())
	probe := jobs.NewHTTPProbe(client, cfg.Server.BaseURL)

	printer := &progressPrinter{}
	coord := jobs.New(probe,
		jobs.Config{PollInterval: cfg.Jobs.GetPollInterval()},
		jobs.WithLogger(slog.Default()),
		jobs.WithListener(printer.observe),
	)
	defer func() { _ = coord.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord.Start(ctx, jobs.Target{Dataset: args[0], Labels: labels})

	snap, err := coord.Wait(ctx)
	if err != nil {
		coord.Cancel()
		fmt.Println("Labeling was cancelled.")
		return nil
	}

	switch snap.Status {
	case session.StatusSucceeded:
		fmt.Println("Labeling complete.")
		return nil
	case session.StatusFailed:
		return fmt.Errorf("%s", snap.LastError)
	case session.StatusCancelled:
		fmt.Println("Labeling was cancelled.")
		return nil
	default:
		return fmt.Errorf("labeling ended in unexpected state %s", snap.Status)
	}
}
