package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// logsCmd represents the logs command.
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View kvsync logs",
	Long:  `Display kvsync's log file: sync activity, errors, and system events.`,
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().Int("tail", 20, "Number of lines to display")
	logsCmd.Flags().Bool("follow", false, "Follow log output (like tail -f)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")
	follow, _ := cmd.Flags().GetBool("follow")

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(home, ".kvsync", "logs", "kvsync.log")

	fmt.Printf("📜 kvsync Logs\n")
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("📁 File: %s\n\n", logPath)

	lines, err := tailLines(logPath, tail)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("(no log file yet)")
			return nil
		}
		return fmt.Errorf("failed to read log file: %w", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if !follow {
		return nil
	}

	fmt.Printf("\n👁️  Following... (Ctrl+C to stop)\n")
	return followFile(logPath)
}

func tailLines(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

func followFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, os.SEEK_END); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fmt.Print(line)
		}
		if err != nil {
			time.Sleep(500 * time.Millisecond)
		}
	}
}
