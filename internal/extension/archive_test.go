package extension

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func zipEntries(t *testing.T, zipPath string) map[string]bool {
	t.Helper()
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	entries := make(map[string]bool)
	for _, f := range r.File {
		entries[f.Name] = true
	}
	return entries
}

func TestPackIncludesExactlyRegularFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo"}`)
	writeFile(t, filepath.Join(src, "popup.js"), "// popup")
	writeFile(t, filepath.Join(src, "assets", "style.css"), "body {}")
	// Files that must not be packaged
	writeFile(t, filepath.Join(src, ".DS_Store"), "junk")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(src, "node_modules", "dep", "index.js"), "junk")
	writeFile(t, filepath.Join(src, "assets", ".hidden"), "junk")

	out := filepath.Join(t.TempDir(), "ext.zip")
	if err := Pack(src, out); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got := zipEntries(t, out)
	want := []string{"manifest.json", "popup.js", "assets/style.css"}

	if len(got) != len(want) {
		names := make([]string, 0, len(got))
		for name := range got {
			names = append(names, name)
		}
		sort.Strings(names)
		t.Fatalf("archive has %d entries %v, want %d", len(got), names, len(want))
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing archive entry %q", name)
		}
	}
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), `{"name":"demo","version":"1.0"}`)
	writeFile(t, filepath.Join(src, "scripts", "background.js"), "console.log('bg');")

	zipPath := filepath.Join(t.TempDir(), "ext.zip")
	if err := Pack(src, zipPath); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(zipPath, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for rel, content := range map[string]string{
		"manifest.json":         `{"name":"demo","version":"1.0"}`,
		"scripts/background.js": "console.log('bg');",
	} {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(data) != content {
			t.Errorf("%s content %q want %q", rel, data, content)
		}
	}
}

func TestExtractRejectsPathEscape(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("../evil.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("escape"))
	zw.Close()
	f.Close()

	if err := Extract(zipPath, t.TempDir()); err == nil {
		t.Fatal("expected error for entry escaping destination")
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "manifest.json"), "{}")
	writeFile(t, filepath.Join(src, "nested", "content.js"), "// content")

	dest := t.TempDir()
	if err := copyTree(src, dest); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	for _, rel := range []string{"manifest.json", "nested/content.js"} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing copied file %s: %v", rel, err)
		}
	}
}
