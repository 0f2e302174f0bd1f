package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pulsepoint/kvsync/pkg/errors"
	"github.com/pulsepoint/kvsync/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// OAuthConfig holds OAuth2 configuration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Auth handles Google OAuth2 authentication and hands out an
// authenticated Drive service for the gdrive backend.
type Auth struct {
	config    *oauth2.Config
	tokenFile string
	logger    *zap.Logger
}

// NewAuth creates a new Google authentication handler.
func NewAuth(cfg *OAuthConfig, tokenFile string) (*Auth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.NewAuthError("missing client ID or client secret", nil)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{
			drive.DriveAppdataScope,
			drive.DriveFileScope,
			drive.DriveMetadataScope,
		}
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	return &Auth{config: config, tokenFile: tokenFile, logger: logger.Get()}, nil
}

// Authenticate performs the OAuth2 flow (reusing or refreshing a stored
// token when possible) and returns an authenticated HTTP client.
func (a *Auth) Authenticate(ctx context.Context) (*http.Client, error) {
	token, err := a.loadToken()
	if err == nil && token.Valid() {
		a.logger.Info("using existing valid token")
		return a.config.Client(ctx, token), nil
	}

	if token != nil && !token.Valid() && token.RefreshToken != "" {
		a.logger.Info("refreshing expired token")
		tokenSource := a.config.TokenSource(ctx, token)
		newToken, err := tokenSource.Token()
		if err == nil {
			if err := a.saveToken(newToken); err != nil {
				a.logger.Warn("failed to save refreshed token", zap.Error(err))
			}
			return a.config.Client(ctx, newToken), nil
		}
		a.logger.Warn("failed to refresh token, starting new auth flow", zap.Error(err))
	}

	a.logger.Info("starting new OAuth2 authentication flow")
	token, err = a.performOAuth2Flow(ctx)
	if err != nil {
		return nil, errors.NewAuthError("OAuth2 flow failed", err)
	}

	if err := a.saveToken(token); err != nil {
		a.logger.Warn("failed to save token", zap.Error(err))
	}

	return a.config.Client(ctx, token), nil
}

func (a *Auth) performOAuth2Flow(ctx context.Context) (*oauth2.Token, error) {
	state := a.generateStateToken()
	authURL := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)
	server := a.startCallbackServer(state, codeChan, errChan)
	defer server.Shutdown(ctx)

	fmt.Printf("\nVisit this URL to authorize kvsync's remote backend:\n%s\n\n", authURL)
	fmt.Println("Waiting for authorization...")

	select {
	case code := <-codeChan:
		token, err := a.config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange code for token: %w", err)
		}
		fmt.Println("authorization successful")
		return token, nil
	case err := <-errChan:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timeout")
	}
}

func (a *Auth) startCallbackServer(expectedState string, codeChan chan<- string, errChan chan<- error) *http.Server {
	listener, err := net.Listen("tcp", "localhost:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "localhost:0")
		if err != nil {
			errChan <- fmt.Errorf("failed to start callback server: %w", err)
			return nil
		}
	}

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != expectedState {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			errChan <- fmt.Errorf("invalid state parameter")
			return
		}
		if errCode := r.URL.Query().Get("error"); errCode != "" {
			http.Error(w, fmt.Sprintf("authorization failed: %s", errCode), http.StatusBadRequest)
			errChan <- fmt.Errorf("authorization failed: %s", errCode)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "no authorization code received", http.StatusBadRequest)
			errChan <- fmt.Errorf("no authorization code received")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Authorization successful</h1><p>You can close this window.</p></body></html>`)
		codeChan <- code
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error("callback server error", zap.Error(err))
		}
	}()

	return server
}

func (a *Auth) generateStateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// GetDriveService authenticates and returns a Drive API client.
func (a *Auth) GetDriveService(ctx context.Context) (*drive.Service, error) {
	client, err := a.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.NewAuthError("failed to create Drive service", err)
	}

	return service, nil
}

// RevokeToken revokes and deletes the stored token.
func (a *Auth) RevokeToken() error {
	token, err := a.loadToken()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(
		fmt.Sprintf("https://oauth2.googleapis.com/revoke?token=%s", token.AccessToken),
		"application/x-www-form-urlencoded",
		nil,
	)
	if err != nil {
		return errors.NewAuthError("failed to revoke token", err)
	}
	defer resp.Body.Close()

	if err := os.Remove(a.tokenFile); err != nil && !os.IsNotExist(err) {
		return errors.NewAuthError("failed to remove token file", err)
	}

	a.logger.Info("token revoked successfully")
	return nil
}

// storedToken wraps an oauth2.Token with save metadata.
type storedToken struct {
	*oauth2.Token
	SavedAt time.Time `json:"saved_at"`
}

func (a *Auth) loadToken() (*oauth2.Token, error) {
	if a.tokenFile == "" {
		return nil, fmt.Errorf("no token file specified")
	}

	data, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil, err
	}

	var token storedToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	return token.Token, nil
}

func (a *Auth) saveToken(token *oauth2.Token) error {
	if a.tokenFile == "" {
		return fmt.Errorf("no token file specified")
	}

	dir := filepath.Dir(a.tokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	wrapped := storedToken{Token: token, SavedAt: time.Now()}
	data, err := json.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(a.tokenFile, data, 0600)
}

// IsAuthenticated checks if valid authentication already exists on disk.
func (a *Auth) IsAuthenticated() bool {
	token, err := a.loadToken()
	return err == nil && token != nil && token.Valid()
}

// GetTokenInfo returns information about the current stored token.
func (a *Auth) GetTokenInfo() (map[string]interface{}, error) {
	token, err := a.loadToken()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"valid":       token.Valid(),
		"expiry":      token.Expiry,
		"has_refresh": token.RefreshToken != "",
	}, nil
}
