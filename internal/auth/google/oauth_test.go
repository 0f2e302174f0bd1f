package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewAuth(t *testing.T) {
	tests := []struct {
		name    string
		config  *OAuthConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: &OAuthConfig{
				ClientID:     "test-client-id",
				ClientSecret: "test-client-secret",
			},
			wantErr: false,
		},
		{
			name: "missing client ID",
			config: &OAuthConfig{
				ClientSecret: "test-client-secret",
			},
			wantErr: true,
		},
		{
			name: "missing client secret",
			config: &OAuthConfig{
				ClientID: "test-client-id",
			},
			wantErr: true,
		},
		{
			name:    "empty config",
			config:  &OAuthConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewAuth(tt.config, "")
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, auth)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, auth)
			}
		})
	}
}

func TestGenerateStateToken(t *testing.T) {
	auth := &Auth{}

	token1 := auth.generateStateToken()
	token2 := auth.generateStateToken()

	assert.NotEmpty(t, token1)
	assert.NotEmpty(t, token2)
	assert.NotEqual(t, token1, token2)
	assert.True(t, len(token1) > 40)
}

func TestTokenPersistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "kvsync-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	tokenFile := filepath.Join(tmpDir, "token.json")
	auth := &Auth{tokenFile: tokenFile}

	testToken := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}

	err = auth.saveToken(testToken)
	assert.NoError(t, err)

	info, err := os.Stat(tokenFile)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedToken, err := auth.loadToken()
	assert.NoError(t, err)
	assert.Equal(t, testToken.AccessToken, loadedToken.AccessToken)
	assert.Equal(t, testToken.RefreshToken, loadedToken.RefreshToken)
}

func TestIsAuthenticated(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "kvsync-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	tokenFile := filepath.Join(tmpDir, "token.json")
	auth := &Auth{tokenFile: tokenFile}

	assert.False(t, auth.IsAuthenticated())

	validToken := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	err = auth.saveToken(validToken)
	require.NoError(t, err)
	assert.True(t, auth.IsAuthenticated())

	expiredToken := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}
	err = auth.saveToken(expiredToken)
	require.NoError(t, err)
	assert.False(t, auth.IsAuthenticated())
}

func TestCallbackServer(t *testing.T) {
	auth := &Auth{}

	expectedState := "test-state-123"
	expectedCode := "test-auth-code"

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := auth.startCallbackServer(expectedState, codeChan, errChan)
	require.NotNil(t, server)
	defer server.Shutdown(context.Background())

	time.Sleep(100 * time.Millisecond)

	req := httptest.NewRequest("GET", "/callback?state="+expectedState+"&code="+expectedCode, nil)
	w := httptest.NewRecorder()

	server.Handler.ServeHTTP(w, req)

	select {
	case code := <-codeChan:
		assert.Equal(t, expectedCode, code)
	case err := <-errChan:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for code")
	}
}

func TestGetTokenInfo(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "kvsync-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	tokenFile := filepath.Join(tmpDir, "token.json")
	auth := &Auth{tokenFile: tokenFile}

	_, err = auth.GetTokenInfo()
	assert.Error(t, err)

	testToken := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	err = auth.saveToken(testToken)
	require.NoError(t, err)

	info, err := auth.GetTokenInfo()
	assert.NoError(t, err)
	assert.NotNil(t, info)
	assert.True(t, info["valid"].(bool))
	assert.True(t, info["has_refresh"].(bool))

	expectedExpiry := testToken.Expiry
	actualExpiry := info["expiry"].(time.Time)
	assert.WithinDuration(t, expectedExpiry, actualExpiry, time.Second)
}
