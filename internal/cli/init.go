package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize kvsync configuration",
	Long: `Initialize kvsync configuration in your home directory.

This creates:
- ~/.kvsync/config.yaml - Main configuration file
- ~/.kvsync/logs/       - Log file directory
- ~/.kvsync/credentials/, ~/.kvsync/tokens/ - OAuth material`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	kvsyncDir := filepath.Join(home, ".kvsync")
	if err := os.MkdirAll(kvsyncDir, 0700); err != nil {
		return fmt.Errorf("failed to create kvsync directory: %w", err)
	}

	for _, dir := range []string{"logs", "credentials", "tokens"} {
		if err := os.MkdirAll(filepath.Join(kvsyncDir, dir), 0700); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	configPath := filepath.Join(kvsyncDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", configPath)
	}

	defaultConfig := map[string]interface{}{
		"version": "1.0",
		"sync": map[string]interface{}{
			"interval":           "60s",
			"batch_size":         100,
			"max_retries":        5,
			"strategy":           "incremental",
			"default_resolution": "last_write_wins",
			"enable_three_way":   true,
		},
		"backend": map[string]interface{}{
			"type": "memory",
		},
		"logging": map[string]interface{}{
			"level":       "info",
			"file":        filepath.Join(kvsyncDir, "logs", "kvsync.log"),
			"max_size":    100,
			"max_backups": 5,
			"max_age":     30,
		},
	}

	configData, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(configPath, configData, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("✅ kvsync initialized successfully!\n")
	fmt.Printf("📁 Configuration directory: %s\n", kvsyncDir)
	fmt.Printf("📝 Configuration file: %s\n\n", configPath)
	fmt.Printf("Next steps:\n")
	fmt.Printf("1. Run 'kvsync auth google' to authenticate with Google Drive (optional)\n")
	fmt.Printf("2. Run 'kvsync watch /path/to/folder' to start continuous sync\n")

	return nil
}
