package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pulsepoint/kvsync/internal/auth/google"
	pplogger "github.com/pulsepoint/kvsync/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// authCmd represents the auth command.
var authCmd = &cobra.Command{
	Use:   "auth [provider]",
	Short: "Manage authentication with remote backends",
	Long: `Authenticate kvsync with a remote backend.

Currently supported:
- google (Google Drive appDataFolder)`,
	Args: cobra.ExactArgs(1),
	RunE: runAuth,
}

func init() {
	authCmd.Flags().Bool("revoke", false, "Revoke existing authentication")
	authCmd.Flags().Bool("status", false, "Check authentication status")
	authCmd.Flags().String("credentials", "", "Path to Google credentials JSON file")
	authCmd.Flags().String("token-file", "", "Path to store OAuth2 token (default: ~/.kvsync/tokens/google_token.json)")
}

func runAuth(cmd *cobra.Command, args []string) error {
	provider := args[0]
	revoke, _ := cmd.Flags().GetBool("revoke")
	status, _ := cmd.Flags().GetBool("status")

	// The path flags take precedence over the environment and the config
	// file: the helpers below consult these variables first.
	if credentials, _ := cmd.Flags().GetString("credentials"); credentials != "" {
		os.Setenv("GOOGLE_CREDENTIALS_FILE", credentials)
	}
	if tokenFile, _ := cmd.Flags().GetString("token-file"); tokenFile != "" {
		os.Setenv("GOOGLE_TOKEN_FILE", tokenFile)
	}

	switch provider {
	case "google", "gdrive":
		if status {
			return checkGoogleAuthStatus()
		}
		if revoke {
			return revokeGoogleAuth()
		}
		return authenticateGoogle()
	default:
		return fmt.Errorf("unsupported provider: %s", provider)
	}
}

func authenticateGoogle() error {
	log := pplogger.Get()
	fmt.Println("🔐 Initiating Google Drive authentication...")

	credentialsPath := os.Getenv("GOOGLE_CREDENTIALS_FILE")
	if credentialsPath == "" {
		credentialsPath = viper.GetString("providers.google.credentials_file")
		if credentialsPath == "" {
			credentialsPath = google.GetDefaultCredentialsPath()
			if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
				fmt.Println("\n⚠️  No Google credentials file found!")
				fmt.Println("\nTo authenticate with Google Drive, you need to:")
				fmt.Println("1. Go to https://console.cloud.google.com/")
				fmt.Println("2. Create a new project or select an existing one")
				fmt.Println("3. Enable the Google Drive API")
				fmt.Println("4. Create OAuth2 credentials (Desktop application type)")
				fmt.Println("5. Download the credentials JSON file")
				fmt.Printf("6. Save it to: %s\n", credentialsPath)
				fmt.Println("   Or use --credentials to specify a different path")
				return fmt.Errorf("credentials not configured")
			}
		}
	}

	tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = viper.GetString("providers.google.token_file")
		if tokenFile == "" {
			tokenFile = google.GetDefaultTokenPath()
		}
	}

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		creds, err := google.LoadCredentials(credentialsPath)
		if err != nil {
			return fmt.Errorf("failed to load credentials: %w", err)
		}
		clientID = creds.ClientID
		clientSecret = creds.ClientSecret
	}

	auth, err := google.NewAuth(&google.OAuthConfig{ClientID: clientID, ClientSecret: clientSecret}, tokenFile)
	if err != nil {
		return fmt.Errorf("failed to create auth handler: %w", err)
	}

	if auth.IsAuthenticated() {
		fmt.Println("✅ Already authenticated with Google Drive")
		fmt.Println("   Use --revoke to remove existing authentication")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := auth.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	service, err := auth.GetDriveService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Drive service: %w", err)
	}
	if about, err := service.About.Get().Fields("user").Do(); err != nil {
		log.Warn("failed to get user info", zap.Error(err))
	} else if about.User != nil {
		fmt.Printf("✅ Authenticated as: %s\n", about.User.EmailAddress)
	}

	fmt.Println("🔑 Credentials saved securely to:", tokenFile)

	viper.Set("providers.google.credentials_file", credentialsPath)
	viper.Set("providers.google.token_file", tokenFile)
	viper.Set("backend.type", "gdrive")
	if err := viper.WriteConfig(); err != nil {
		log.Warn("failed to update config file", zap.Error(err))
	}

	return nil
}

func revokeGoogleAuth() error {
	fmt.Println("🔓 Revoking Google Drive authentication...")

	tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = viper.GetString("providers.google.token_file")
		if tokenFile == "" {
			tokenFile = google.GetDefaultTokenPath()
		}
	}

	auth, err := google.NewAuth(&google.OAuthConfig{ClientID: "placeholder", ClientSecret: "placeholder"}, tokenFile)
	if err != nil {
		return fmt.Errorf("failed to create auth handler: %w", err)
	}
	if err := auth.RevokeToken(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	viper.Set("backend.type", "memory")
	viper.WriteConfig()

	fmt.Println("✅ Authentication revoked successfully")
	return nil
}

func checkGoogleAuthStatus() error {
	fmt.Println("🔍 Checking Google Drive authentication status...")

	tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = viper.GetString("providers.google.token_file")
		if tokenFile == "" {
			tokenFile = google.GetDefaultTokenPath()
		}
	}

	if _, err := os.Stat(tokenFile); os.IsNotExist(err) {
		fmt.Println("❌ Not authenticated")
		fmt.Println("   Run 'kvsync auth google' to authenticate")
		return nil
	}

	auth, err := google.NewAuth(&google.OAuthConfig{ClientID: "placeholder", ClientSecret: "placeholder"}, tokenFile)
	if err != nil {
		return fmt.Errorf("failed to create auth handler: %w", err)
	}

	if !auth.IsAuthenticated() {
		fmt.Println("⚠️  Token exists but is not valid")
		fmt.Println("   Run 'kvsync auth google' to re-authenticate")
		return nil
	}

	info, err := auth.GetTokenInfo()
	if err != nil {
		return fmt.Errorf("failed to get token info: %w", err)
	}

	fmt.Println("✅ Authenticated with Google Drive")
	if expiry, ok := info["expiry"].(time.Time); ok {
		fmt.Printf("📅 Token expires: %s\n", expiry.Format("2006-01-02 15:04:05"))
		if time.Until(expiry) < 24*time.Hour {
			fmt.Println("⚠️  Token expires soon, consider re-authenticating")
		}
	}
	if hasRefresh, ok := info["has_refresh"].(bool); ok && hasRefresh {
		fmt.Println("🔄 Refresh token available (auto-renewal enabled)")
	}

	return nil
}
