package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kvsync sync status",
	Long: `Display the current state of the local store and the last
reconciliation pass: last sync time, pending changes, and offline
queue depth.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, store, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer eng.Close()

	status := eng.Status()

	fmt.Printf("🎯 kvsync Status\n")
	fmt.Printf("═══════════════════════════════════════\n\n")

	fmt.Printf("📡 Connection\n")
	if status.State.IsConnected {
		fmt.Printf("  State: 🟢 Connected\n")
	} else {
		fmt.Printf("  State: 🔴 Offline\n")
	}
	fmt.Printf("  Currently syncing: %v\n\n", status.State.IsSyncing)

	fmt.Printf("📊 Sync State\n")
	if status.State.LastSync > 0 {
		last := time.UnixMilli(status.State.LastSync)
		fmt.Printf("  Last sync: %s (%s ago)\n", last.Format("2006-01-02 15:04:05"), time.Since(last).Round(time.Second))
	} else {
		fmt.Printf("  Last sync: never\n")
	}
	fmt.Printf("  Pending changes: %d\n", status.State.PendingChanges)
	fmt.Printf("  Offline queue length: %d\n\n", status.QueueLength)

	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("💡 Tip: run 'kvsync sync' to reconcile now\n")

	return nil
}
