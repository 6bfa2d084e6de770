package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	p := writePlugin(t, dir, "notify", "", EventPostureBad, EventPostureGood)

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	got := plugins[0]
	if got.Manifest.Name != "notify" || got.Manifest.Version != "1.0.0" {
		t.Errorf("manifest = %+v", got.Manifest)
	}
	if got.Path != p.Path {
		t.Errorf("path = %q, want %q", got.Path, p.Path)
	}
	if got.Executable != p.Executable {
		t.Errorf("executable = %q, want %q", got.Executable, p.Executable)
	}
	if len(got.Manifest.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(got.Manifest.Events))
	}
}

func TestManager_Subscribers(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "b-sound", "", EventPostureBad)
	writePlugin(t, dir, "a-log", "", EventPostureBad, EventReferenceChanged)
	writePlugin(t, dir, "c-good", "", EventPostureGood)

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	subs := manager.Subscribers(EventPostureBad)
	if len(subs) != 2 || subs[0].Manifest.Name != "a-log" || subs[1].Manifest.Name != "b-sound" {
		t.Errorf("Subscribers(bad) = %v, want [a-log b-sound]", subs)
	}
	if subs := manager.Subscribers(EventReferenceChanged); len(subs) != 1 {
		t.Errorf("Subscribers(reference.changed) = %d plugins, want 1", len(subs))
	}
	if subs := manager.Subscribers("unknown"); len(subs) != 0 {
		t.Errorf("Subscribers(unknown) = %d plugins, want 0", len(subs))
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad-json")
	if err := os.MkdirAll(bad, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	noExe := filepath.Join(dir, "no-exe")
	if err := os.MkdirAll(noExe, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(noExe, "plugin.json"), []byte(`{"name":"no-exe"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray-file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing"))

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Get(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "my-plugin", "", EventPostureBad)

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	p, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Manifest.Name != "my-plugin" {
		t.Errorf("expected plugin name 'my-plugin', got %q", p.Manifest.Name)
	}

	if _, err := manager.Get("nonexistent"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	if got := NewManager("/path/to/plugins").PluginDir(); got != "/path/to/plugins" {
		t.Errorf("PluginDir() = %q", got)
	}
}
