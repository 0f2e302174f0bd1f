// Package gdrive implements a RemoteBackend backed by the Google Drive
// appDataFolder: each stored key becomes one small JSON file, tagged with
// an appProperties entry carrying the key, so keys never collide with a
// user's visible Drive content.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pulsepoint/kvsync/internal/auth/google"
	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	pperrors "github.com/pulsepoint/kvsync/pkg/errors"
	pplogger "github.com/pulsepoint/kvsync/pkg/logger"
	"github.com/pulsepoint/kvsync/pkg/value"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
)

const (
	appDataSpace  = "appDataFolder"
	keyProperty   = "kvsyncKey"
	pollInterval  = 30 * time.Second
	listPageSize  = 200
)

// fileRecord is the JSON payload stored inside each Drive file.
type fileRecord struct {
	Value    value.Value         `json:"value"`
	Metadata interfaces.Metadata `json:"metadata"`
}

// Config configures a Backend.
type Config struct {
	CredentialsPath string
	TokenPath       string
	OAuthConfig     *google.OAuthConfig
}

// Backend is a RemoteBackend and interfaces.Subscribable backed by a
// user's Google Drive appDataFolder.
type Backend struct {
	service *drive.Service
	logger  *zap.Logger

	mu       sync.RWMutex
	fileIDs  map[string]string // key -> Drive file ID, cached

	subMu sync.Mutex
	subs  map[int]interfaces.ChangeHandler
	nextID int
	stopCh chan struct{}
}

// New authenticates against Google Drive and returns a ready Backend.
func New(ctx context.Context, cfg *Config) (*Backend, error) {
	if cfg == nil {
		return nil, pperrors.NewConfigError("gdrive backend configuration is required", nil)
	}

	creds, err := google.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	oauthCfg := cfg.OAuthConfig
	if oauthCfg == nil {
		oauthCfg = &google.OAuthConfig{}
	}
	oauthCfg.ClientID = creds.ClientID
	oauthCfg.ClientSecret = creds.ClientSecret

	auth, err := google.NewAuth(oauthCfg, cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	service, err := auth.GetDriveService(ctx)
	if err != nil {
		return nil, err
	}

	return &Backend{
		service: service,
		logger:  pplogger.Get(),
		fileIDs: make(map[string]string),
		subs:    make(map[int]interfaces.ChangeHandler),
	}, nil
}

func (b *Backend) findFileID(ctx context.Context, key string) (string, error) {
	b.mu.RLock()
	id, ok := b.fileIDs[key]
	b.mu.RUnlock()
	if ok {
		return id, nil
	}

	query := fmt.Sprintf("appProperties has { key='%s' and value='%s' } and trashed = false", keyProperty, escapeQuery(key))
	result, err := b.service.Files.List().
		Spaces(appDataSpace).
		Q(query).
		Fields("files(id, name, modifiedTime, appProperties)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", pperrors.NewBackendError("failed to query appDataFolder", err, 0)
	}
	if len(result.Files) == 0 {
		return "", nil
	}

	id = result.Files[0].Id
	b.mu.Lock()
	b.fileIDs[key] = id
	b.mu.Unlock()
	return id, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "'", "\\'")
}

func (b *Backend) Get(ctx context.Context, key string) (value.Value, bool, error) {
	id, err := b.findFileID(ctx, key)
	if err != nil {
		return value.Value{}, false, err
	}
	if id == "" {
		return value.Value{}, false, nil
	}

	resp, err := b.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return value.Value{}, false, pperrors.NewBackendError("failed to download item", err, 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Value{}, false, pperrors.NewSerializationError("failed to read item content", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return value.Value{}, false, pperrors.NewSerializationError("failed to decode item", err)
	}
	return rec.Value, true, nil
}

func (b *Backend) Put(ctx context.Context, key string, v value.Value) error {
	now := time.Now()
	rec := fileRecord{
		Value: v,
		Metadata: interfaces.Metadata{
			Key:       key,
			UpdatedAt: now.UnixMilli(),
		},
	}

	id, err := b.findFileID(ctx, key)
	if err != nil {
		return err
	}

	if id == "" {
		rec.Metadata.CreatedAt = now.UnixMilli()
		payload, err := json.Marshal(rec)
		if err != nil {
			return pperrors.NewSerializationError("failed to encode item", err)
		}

		driveFile := &drive.File{
			Name:           key,
			Parents:        []string{appDataSpace},
			AppProperties:  map[string]string{keyProperty: key},
			MimeType:       "application/json",
		}
		created, err := b.service.Files.Create(driveFile).
			Media(bytes.NewReader(payload)).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return pperrors.NewBackendError("failed to create item", err, 0)
		}

		b.mu.Lock()
		b.fileIDs[key] = created.Id
		b.mu.Unlock()
		return nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return pperrors.NewSerializationError("failed to encode item", err)
	}

	_, err = b.service.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(payload)).
		Context(ctx).
		Do()
	if err != nil {
		return pperrors.NewBackendError("failed to update item", err, 0)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	id, err := b.findFileID(ctx, key)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}

	if err := b.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return pperrors.NewBackendError("failed to delete item", err, 0)
	}

	b.mu.Lock()
	delete(b.fileIDs, key)
	b.mu.Unlock()
	return nil
}

func (b *Backend) ListChangedSince(ctx context.Context, since int64) ([]interfaces.StorageItem, error) {
	var items []interfaces.StorageItem
	pageToken := ""

	for {
		call := b.service.Files.List().
			Spaces(appDataSpace).
			Q("trashed = false").
			Fields("nextPageToken, files(id, name, modifiedTime, appProperties)").
			PageSize(listPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Context(ctx).Do()
		if err != nil {
			return nil, pperrors.NewBackendError("failed to list appDataFolder", err, 0)
		}

		for _, f := range result.Files {
			modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			if modTime.UnixMilli() <= since {
				continue
			}
			key := f.AppProperties[keyProperty]
			if key == "" {
				continue
			}
			v, found, err := b.Get(ctx, key)
			if err != nil || !found {
				continue
			}
			items = append(items, interfaces.StorageItem{
				Key:   key,
				Value: v,
				Metadata: interfaces.Metadata{
					Key:       key,
					UpdatedAt: modTime.UnixMilli(),
				},
			})
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return items, nil
}

// Subscribe polls the appDataFolder for changes every pollInterval and
// fans newly modified items out to handler. Google Drive's Changes API
// would be a more efficient basis for this, but appDataFolder activity
// is low-volume enough that polling keeps this backend self-contained.
func (b *Backend) Subscribe(ctx context.Context, handler interfaces.ChangeHandler) (interfaces.Unsubscribe, error) {
	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = handler
	if b.stopCh == nil {
		b.stopCh = make(chan struct{})
		go b.pollLoop(ctx)
	}
	b.subMu.Unlock()

	return func() error {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
		return nil
	}, nil
}

func (b *Backend) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastPoll := time.Now().UnixMilli()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			items, err := b.ListChangedSince(ctx, lastPoll)
			if err != nil {
				b.logger.Warn("gdrive poll failed", zap.Error(err))
				continue
			}
			lastPoll = time.Now().UnixMilli()
			if len(items) == 0 {
				continue
			}

			b.subMu.Lock()
			handlers := make([]interfaces.ChangeHandler, 0, len(b.subs))
			for _, h := range b.subs {
				handlers = append(handlers, h)
			}
			b.subMu.Unlock()

			for _, item := range items {
				for _, h := range handlers {
					h(item)
				}
			}
		}
	}
}
