package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	kvwatch "github.com/pulsepoint/kvsync/internal/watch"
	"github.com/pulsepoint/kvsync/internal/watch/ignore"
	"github.com/spf13/cobra"
)

// watchCmd continuously monitors a local directory and keeps it synced
// with the remote backend via periodic reconciliation passes.
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Continuously sync a local directory with the remote backend",
	Long: `Watch a local directory tree and keep it synchronized with the
configured remote backend: local edits are pushed as they happen, and a
periodic reconciliation pass pulls remote changes and resolves
conflicts.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", 60*time.Second, "Reconciliation pass interval")
	watchCmd.Flags().String("ignore-file", ".kvsyncignore", "Ignore-pattern file, relative to the watched root")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]
	interval, _ := cmd.Flags().GetDuration("interval")
	ignoreFile, _ := cmd.Flags().GetString("ignore-file")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("👁️  Watching %s\n", root)

	eng, store, err := buildEngineWithInterval(ctx, interval)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer eng.Close()

	matcher := ignore.New()
	if err := matcher.LoadFromFile(root + string(os.PathSeparator) + ignoreFile); err != nil {
		fmt.Printf("⚠️  failed to load ignore file: %v\n", err)
	}

	watcher, err := kvwatch.New(&kvwatch.Options{Root: root, Engine: eng, Ignorer: matcher})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Println("✅ Watching for changes (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\n🛑 Stopping...")
	case <-ctx.Done():
	}

	return nil
}
