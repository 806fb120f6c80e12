package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testFS(t *testing.T) *FS {
	t.Helper()
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestWriteRead_RoundTrip(t *testing.T) {
	f := testFS(t)
	if err := f.Write("a.md", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := f.Read("a.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q", data)
	}
}

func TestWrite_CreatesSubdirs(t *testing.T) {
	f := testFS(t)
	if err := f.Write(filepath.Join("sub", "deep.md"), []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Read(filepath.Join("sub", "deep.md")); err != nil {
		t.Errorf("Read: %v", err)
	}
}

func TestList_FiltersByExtension(t *testing.T) {
	f := testFS(t)
	_ = f.Write("a.md", []byte("a"))
	_ = f.Write("b.txt", []byte("b"))
	_ = f.Write(filepath.Join("sub", "c.md"), []byte("c"))

	infos, err := f.List("md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if filepath.Ext(info.Path) != ".md" {
			t.Errorf("unexpected file: %s", info.Path)
		}
		if info.ModTime.IsZero() {
			t.Errorf("zero mod time for %s", info.Path)
		}
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	f := testFS(t)
	for _, p := range []string{"../escape.md", "/abs/path.md", "sub/../../up.md"} {
		if _, err := f.Read(p); err == nil {
			t.Errorf("path %q should be rejected", p)
		}
	}
}

func TestDelete(t *testing.T) {
	f := testFS(t)
	_ = f.Write("gone.md", []byte("x"))
	if err := f.Delete("gone.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.Root(), "gone.md")); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
}

func TestNewFS_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	f, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if _, err := os.Stat(f.Root()); err != nil {
		t.Errorf("root not created: %v", err)
	}
}
