package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomstudio/loomctl/internal/authflow"
	"github.com/loomstudio/loomctl/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Loom Studio through your browser",
	Long: `Sign in to Loom Studio. Opens the login page in your browser and waits for
the sign-in to complete. If the browser cannot be opened, the login URL is
printed so you can visit it manually.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().String("return-to", "/", "Path within Loom Studio to land on after signing in")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	returnPath, err := cmd.Flags().GetString("return-to")
	if err != nil {
		return fmt.Errorf("failed to read return-to flag: %w", err)
	}

	probe, err := newAuthProbe(cfg)
	if err != nil {
		return err
	}

	var identity atomic.Pointer[authflow.Identity]
	var fellBack atomic.Bool

	coord := authflow.New(probe,
		authflow.Config{
			CloseCheckInterval: cfg.Auth.GetCloseCheckInterval(),
			StatusProbeEvery:   cfg.Auth.GetStatusProbeEvery(),
		},
		authflow.WithLogger(slog.Default()),
		authflow.WithOnAuthenticated(func(id authflow.Identity) {
			identity.Store(&id)
		}),
		authflow.WithOpenFallback(func(loginURL string) {
			fellBack.Store(true)
			fmt.Printf("Could not open your browser. Visit this URL to sign in:\n\n    %s\n\n", loginURL)
		}),
	)
	defer func() { _ = coord.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord.Start(ctx, returnPath)

	if fellBack.Load() {
		// Nothing to track; the user completes the sign-in on their own.
		return nil
	}

	fmt.Println("Waiting for sign-in to complete in your browser...")

	snap, err := coord.Wait(ctx)
	if err != nil {
		coord.Cancel(session.ReasonCancelled)
		fmt.Println("Sign-in was cancelled.")
		return nil
	}

	switch snap.Status {
	case session.StatusSucceeded:
		if id := identity.Load(); id != nil && id.Role != "" {
			fmt.Printf("Signed in as %s.\n", id.Role)
		} else {
			fmt.Println("Signed in.")
		}
		return nil
	case session.StatusFailed:
		return fmt.Errorf("%s", snap.LastError)
	case session.StatusCancelled:
		if snap.Reason == session.ReasonCancelled {
			fmt.Println("Sign-in was cancelled.")
		}
		return nil
	default:
		return fmt.Errorf("sign-in ended in unexpected state %s", snap.Status)
	}
}
