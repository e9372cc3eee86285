package client

import (
	"context"
	"strings"
	"testing"

	appconfig "github.com/vidtube/backend/internal/config"
)

func TestStorageKeyKeepsExtension(t *testing.T) {
	key := storageKey("/tmp/upload/avatar.png")
	if !strings.HasPrefix(key, "media/") {
		t.Fatalf("expected media/ prefix, got %s", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("expected .png suffix, got %s", key)
	}
	if key == storageKey("/tmp/upload/avatar.png") {
		t.Fatal("expected distinct keys for repeated uploads")
	}
}

func TestObjectURL(t *testing.T) {
	c := NewMediaClient(appconfig.MediaConfig{
		PublicBaseURL: "https://cdn.example.com/",
	})
	if got := c.objectURL("media/1/2/3/x.png"); got != "https://cdn.example.com/media/1/2/3/x.png" {
		t.Fatalf("unexpected url: %s", got)
	}

	c = NewMediaClient(appconfig.MediaConfig{
		Endpoint: "http://localhost:9000",
		Bucket:   "vidtube",
	})
	if got := c.objectURL("media/1/2/3/x.png"); got != "http://localhost:9000/vidtube/media/1/2/3/x.png" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestUploadEmptyPath(t *testing.T) {
	c := NewMediaClient(appconfig.MediaConfig{})
	url, err := c.Upload(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "" {
		t.Fatalf("expected empty url, got %s", url)
	}
}
