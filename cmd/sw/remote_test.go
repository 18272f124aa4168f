package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://web.example.com", Token: "tok_abc", GRPCAddr: "web.example.com:9090", NATSURL: "nats://prod:4222", Project: "saga"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want %q", got.Active, "prod")
	}
	if prod := got.Remotes["prod"]; prod != in.Remotes["prod"] {
		t.Errorf("prod remote = %+v, want %+v", prod, in.Remotes["prod"])
	}
	if local := got.Remotes["local"]; local.URL != "http://localhost:8080" || local.Token != "" {
		t.Errorf("local remote = %+v", local)
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if cfg.Remotes == nil {
		t.Error("Remotes map must not be nil after load")
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	check := func(p string, want os.FileMode) {
		t.Helper()
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	check(path, 0o600)
	check(filepath.Dir(path), 0o700)
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// add, upsert, use, list, remove
	mustRun(t, remoteAddCmd, nil, "local", "http://localhost:8080")
	mustRun(t, remoteAddCmd, map[string]string{"default-project": "saga"}, "local", "http://localhost:8080")
	mustRun(t, remoteUseCmd, nil, "local")

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "local" {
		t.Fatalf("Active = %q, want %q", cfg.Active, "local")
	}
	if cfg.Remotes["local"].Project != "saga" {
		t.Errorf("upsert did not replace the remote: %+v", cfg.Remotes["local"])
	}

	out := mustRun(t, remoteListCmd, nil)
	requireContains(t, out, "* local", "http://localhost:8080", "saga")

	mustRun(t, remoteRemoveCmd, nil, "local")
	cfg, _ = loadRemotesConfig()
	if _, ok := cfg.Remotes["local"]; ok {
		t.Error("remote 'local' should be gone")
	}
	if cfg.Active != "" {
		t.Errorf("Active should be cleared, got %q", cfg.Active)
	}

	out = mustRun(t, remoteListCmd, nil)
	requireContains(t, out, "no remotes configured")
}

func TestRemoteTokenHandling(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	mustRun(t, remoteAddCmd, map[string]string{"token": "tok_verylongsecret"}, "prod", "https://web.example.com")
	mustRun(t, remoteUseCmd, nil, "prod")

	out := mustRun(t, remoteListCmd, nil)
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("full token must not appear in list output")
	}
	requireContains(t, out, "tok_very...")

	if got := maskToken("short"); got != "short" {
		t.Errorf("maskToken(short) = %q", got)
	}
}

func TestRemoteErrorCases(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{"use unknown", "use"},
		{"remove unknown", "remove"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			cmd := remoteUseCmd
			if tc.cmd == "remove" {
				cmd = remoteRemoveCmd
			}
			if _, err := runCommand(t, cmd, nil, "ghost"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
