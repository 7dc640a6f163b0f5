package extension

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSetup(t *testing.T) *Setup {
	t.Helper()
	s, err := NewSetup(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewSetup: %v", err)
	}
	return s
}

func TestUseExistingDirectory(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo"}`)
	writeFile(t, filepath.Join(src, "popup.js"), "// popup")

	s := newTestSetup(t)
	if err := s.UseExisting(src); err != nil {
		t.Fatalf("UseExisting: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.ExtensionDir(), "manifest.json")); err != nil {
		t.Errorf("manifest not staged: %v", err)
	}
}

func TestUseExistingZip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo"}`)

	zipPath := filepath.Join(t.TempDir(), "ext.zip")
	if err := Pack(src, zipPath); err != nil {
		t.Fatal(err)
	}

	s := newTestSetup(t)
	if err := s.UseExisting(zipPath); err != nil {
		t.Fatalf("UseExisting: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.ExtensionDir(), "manifest.json")); err != nil {
		t.Errorf("manifest not extracted: %v", err)
	}
}

func TestUseExistingRejectsOtherFiles(t *testing.T) {
	bogus := filepath.Join(t.TempDir(), "extension.tar")
	writeFile(t, bogus, "not a zip")

	s := newTestSetup(t)
	err := s.UseExisting(bogus)
	if err == nil {
		t.Fatal("expected error for non-zip regular file")
	}
	if !strings.Contains(err.Error(), "invalid extension path") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUseExistingMissingPath(t *testing.T) {
	s := newTestSetup(t)
	if err := s.UseExisting(filepath.Join(t.TempDir(), "nope.zip")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestPrepareExistingWithoutCredentials(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo"}`)
	writeFile(t, filepath.Join(src, "popup.js"), "let i = 0;")

	s := newTestSetup(t)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	if err := os.Chdir(outDir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	zipPath, err := s.Prepare(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if _, err := os.Stat(zipPath); err != nil {
		t.Fatalf("archive not created: %v", err)
	}

	// nil creds means the staged popup.js stays untouched
	data, err := os.ReadFile(filepath.Join(s.ExtensionDir(), "popup.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "let i = 0;" {
		t.Errorf("popup.js modified despite skip: %q", data)
	}
}

func TestSetupsSharingWorkDirStageSeparately(t *testing.T) {
	srcA := t.TempDir()
	writeFile(t, filepath.Join(srcA, "manifest.json"), `{"name":"alpha"}`)
	writeFile(t, filepath.Join(srcA, "alpha.js"), "// alpha")

	srcB := t.TempDir()
	writeFile(t, filepath.Join(srcB, "manifest.json"), `{"name":"beta"}`)
	writeFile(t, filepath.Join(srcB, "beta.js"), "// beta")

	workDir := t.TempDir()
	a, err := NewSetup(workDir, "")
	if err != nil {
		t.Fatalf("NewSetup: %v", err)
	}
	b, err := NewSetup(workDir, "")
	if err != nil {
		t.Fatalf("NewSetup: %v", err)
	}

	if a.ExtensionDir() == b.ExtensionDir() {
		t.Fatalf("setups share a staging dir: %s", a.ExtensionDir())
	}

	if err := a.UseExisting(srcA); err != nil {
		t.Fatalf("UseExisting: %v", err)
	}
	if err := b.UseExisting(srcB); err != nil {
		t.Fatalf("UseExisting: %v", err)
	}

	zipB, err := b.Package(filepath.Join(t.TempDir(), "beta.zip"))
	if err != nil {
		t.Fatalf("Package: %v", err)
	}

	entries := zipEntries(t, zipB)
	if entries["alpha.js"] {
		t.Error("second extension archive picked up files from the first")
	}
	if !entries["beta.js"] {
		t.Error("second extension archive missing its own files")
	}
}

func TestPrepareArchiveNamesDoNotCollide(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo"}`)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	if err := os.Chdir(outDir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	first, err := newTestSetup(t).Prepare(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	second, err := newTestSetup(t).Prepare(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if first == second {
		t.Fatalf("back-to-back prepares produced the same archive path: %s", first)
	}
}

func TestSetupCleanupRemovesOwnedTempDir(t *testing.T) {
	s, err := NewSetup("", "")
	if err != nil {
		t.Fatalf("NewSetup: %v", err)
	}

	workDir := filepath.Dir(s.ExtensionDir())
	s.Cleanup()

	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("temp work dir not removed: %v", err)
	}
}
