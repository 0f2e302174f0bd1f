package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pulsepoint/kvsync/internal/core/queue"
	"github.com/pulsepoint/kvsync/internal/core/engine"
	"github.com/spf13/cobra"
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in the local store",
	Long:  `Display every key currently held in the local store, along with its size and last-modified time.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().Int("limit", 50, "Limit number of results")
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := context.Background()

	store, err := openLocalStore()
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	keys, err := store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	sort.Strings(keys)

	fmt.Printf("💾 Local store keys\n")
	fmt.Printf("═══════════════════════════════════════\n\n")
	fmt.Printf("%-40s %-20s %-10s\n", "Key", "Modified", "Size")
	fmt.Printf("%-40s %-20s %-10s\n", "───", "────────", "────")

	shown := 0
	var totalSize int64
	for _, key := range keys {
		if key == queue.ReservedKey || key == engine.StateReservedKey {
			continue
		}
		if shown >= limit {
			break
		}
		meta, found, err := store.GetMetadata(ctx, key)
		if err != nil || !found {
			continue
		}
		modified := time.UnixMilli(meta.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%-40s %-20s %-10d\n", key, modified, meta.Size)
		totalSize += meta.Size
		shown++
	}

	fmt.Printf("\n═══════════════════════════════════════\n")
	fmt.Printf("📊 Showing %d of %d keys, %d bytes\n", shown, len(keys), totalSize)

	return nil
}
