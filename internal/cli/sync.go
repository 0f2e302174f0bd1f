package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// syncCmd represents the sync command for a one-shot synchronization pass.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single synchronization pass",
	Long: `Perform one bidirectional reconciliation pass between the local
store and the configured remote backend, then exit.

Unlike 'kvsync watch', which runs continuously, 'sync' runs once and
reports a summary.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("🔄 Starting kvsync reconciliation pass")

	eng, store, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer eng.Close()

	result, err := eng.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println()
	if result.Success {
		fmt.Println("✅ Sync completed successfully")
	} else {
		fmt.Println("⚠️  Sync completed with errors")
	}

	fmt.Printf("📊 Summary:\n")
	fmt.Printf("   📤 Uploaded: %d\n", result.Uploaded)
	fmt.Printf("   📥 Downloaded: %d\n", result.Downloaded)
	fmt.Printf("   🗑️  Deleted: %d\n", result.Deleted)
	fmt.Printf("   ⏭️  Skipped: %d\n", result.Skipped)
	fmt.Printf("   ⚔️  Conflicts resolved: %d\n", result.ConflictsResolved)

	if len(result.Errors) > 0 {
		fmt.Printf("   ❌ Errors: %d\n", len(result.Errors))
		for i, itemErr := range result.Errors {
			if i >= 5 {
				fmt.Printf("      ... and %d more\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("      - %s: %s\n", itemErr.Key, itemErr.Message)
		}
	}

	fmt.Printf("   ⏱️  Duration: %dms\n", result.DurationMillis)

	return nil
}
