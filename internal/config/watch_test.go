package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func awaitRoutes(t *testing.T, ch <-chan map[string]string) map[string]string {
	t.Helper()
	select {
	case routes := <-ch:
		return routes
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for service routes")
		return nil
	}
}

func TestWatchServicesReloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	registry := filepath.Join(dir, "services.json")
	if err := os.WriteFile(registry, []byte(`{"qa":"http://127.0.0.1:8004"}`), 0o600); err != nil {
		t.Fatalf("failed to write services file: %v", err)
	}

	changeCh := make(chan map[string]string, 4)
	errCh := make(chan error, 4)

	watcher, err := WatchServices(ctx, registry, func(routes map[string]string) {
		changeCh <- routes
	}, func(err error) {
		errCh <- err
	})
	if err != nil {
		t.Fatalf("watcher failed: %v", err)
	}
	defer watcher.Stop()

	initial := awaitRoutes(t, changeCh)
	if initial["qa"] != "http://127.0.0.1:8004" {
		t.Fatalf("unexpected initial routes: %v", initial)
	}

	if err := os.WriteFile(registry, []byte(`{"qa":"http://127.0.0.1:9004"}`), 0o600); err != nil {
		t.Fatalf("failed to rewrite services file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case routes := <-changeCh:
			if routes["qa"] == "http://127.0.0.1:9004" {
				return
			}
		case err := <-errCh:
			t.Logf("watcher error during reload: %v", err)
		case <-deadline:
			t.Fatal("watcher never delivered updated routes")
		}
	}
}

func TestWatchServicesSurfacesBadContent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	registry := filepath.Join(dir, "services.json")
	if err := os.WriteFile(registry, []byte(`{"qa":"http://127.0.0.1:8004"}`), 0o600); err != nil {
		t.Fatalf("failed to write services file: %v", err)
	}

	changeCh := make(chan map[string]string, 4)
	errCh := make(chan error, 4)

	watcher, err := WatchServices(ctx, registry, func(routes map[string]string) {
		changeCh <- routes
	}, func(err error) {
		errCh <- err
	})
	if err != nil {
		t.Fatalf("watcher failed: %v", err)
	}
	defer watcher.Stop()

	awaitRoutes(t, changeCh)

	if err := os.WriteFile(registry, []byte(`{"qa":`), 0o600); err != nil {
		t.Fatalf("failed to corrupt services file: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected a parse error")
		}
	case routes := <-changeCh:
		t.Fatalf("expected an error, got routes %v", routes)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never surfaced the parse error")
	}
}

func TestWatchServicesRequiresCallback(t *testing.T) {
	if _, err := WatchServices(context.Background(), "services.json", nil, nil); err == nil {
		t.Fatal("expected an error without a callback")
	}
	if _, err := WatchServices(context.Background(), "", func(map[string]string) {}, nil); err == nil {
		t.Fatal("expected an error without a path")
	}
}
