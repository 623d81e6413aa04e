package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(BibtidyPath(root), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Bib != "refs.bib" {
		t.Errorf("Bib = %q", cfg.Bib)
	}
	if !reflect.DeepEqual(cfg.Extensions, []string{".tex", ".md"}) {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if !reflect.DeepEqual(cfg.SkipDirs, []string{".git", ".bibtidy"}) {
		t.Errorf("SkipDirs = %v", cfg.SkipDirs)
	}
	if cfg.TitleDistance != 0 {
		t.Errorf("TitleDistance = %d, want 0 (exact matching)", cfg.TitleDistance)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := initRepo(t)
	cfg := &Config{
		Bib:           "paper/refs.bib",
		Extensions:    []string{".tex"},
		SkipDirs:      []string{".git"},
		TitleDistance: 2,
		Workers:       8,
		Stopwords:     []string{"toward", "towards"},
	}
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("Load() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	root := initRepo(t)
	if err := os.WriteFile(ConfigPath(root), []byte("bib: refs.bib\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bib != "refs.bib" {
		t.Errorf("Bib = %q", cfg.Bib)
	}
	if !reflect.DeepEqual(cfg.Extensions, []string{".tex", ".md"}) {
		t.Errorf("Extensions = %v, want defaults", cfg.Extensions)
	}
	if !reflect.DeepEqual(cfg.SkipDirs, []string{".git", ".bibtidy"}) {
		t.Errorf("SkipDirs = %v, want defaults", cfg.SkipDirs)
	}
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() on missing config: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadBadYAML(t *testing.T) {
	root := initRepo(t)
	if err := os.WriteFile(ConfigPath(root), []byte("bib: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Fatal("Load() on malformed config should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	root := initRepo(t)
	if err := Default().Save(root); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvBib, "other.bib")
	t.Setenv(EnvTitleDistance, "3")
	t.Setenv(EnvWorkers, "not-a-number")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bib != "other.bib" {
		t.Errorf("Bib = %q, want env override", cfg.Bib)
	}
	if cfg.TitleDistance != 3 {
		t.Errorf("TitleDistance = %d, want 3", cfg.TitleDistance)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, unparseable override should be ignored", cfg.Workers)
	}
}

func TestBibPath(t *testing.T) {
	cfg := &Config{Bib: "refs.bib"}
	if got := cfg.BibPath("/repo"); got != filepath.Join("/repo", "refs.bib") {
		t.Errorf("BibPath = %q", got)
	}
	cfg.Bib = "/abs/refs.bib"
	if got := cfg.BibPath("/repo"); got != "/abs/refs.bib" {
		t.Errorf("BibPath = %q, absolute path should pass through", got)
	}
}

func TestFindRepository(t *testing.T) {
	root := initRepo(t)
	nested := filepath.Join(root, "paper", "sections")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	found, err := FindRepository(nested)
	if err != nil {
		t.Fatalf("FindRepository() error: %v", err)
	}
	// Resolve symlinks so macOS /var vs /private/var agree.
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(found)
	if gotRoot != wantRoot {
		t.Errorf("FindRepository() = %q, want %q", found, root)
	}

	if _, err := FindRepository(t.TempDir()); err == nil {
		t.Error("FindRepository() outside a repo should fail")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/refs.bib"); got != filepath.Join(home, "refs.bib") {
		t.Errorf("ExpandPath(~/refs.bib) = %q", got)
	}
	if got := ExpandPath("plain/refs.bib"); got != "plain/refs.bib" {
		t.Errorf("ExpandPath(plain) = %q", got)
	}
}
