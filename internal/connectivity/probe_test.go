package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOnlineReturnsTrueOnAnyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	p := New(&Options{URL: server.URL, Timeout: time.Second})
	assert.True(t, p.IsOnline(context.Background()), "any reachable response, even an error status, counts as online")
}

func TestIsOnlineReturnsFalseOnUnreachableHost(t *testing.T) {
	p := New(&Options{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.False(t, p.IsOnline(context.Background()))
}

func TestNewFallsBackToDefaults(t *testing.T) {
	p := New(nil)
	assert.Equal(t, DefaultProbeURL, p.url)
	assert.Equal(t, 3*time.Second, p.timeout)
}

func TestNewWithEmptyURLUsesDefault(t *testing.T) {
	p := New(&Options{Timeout: time.Second})
	assert.Equal(t, DefaultProbeURL, p.url)
}
