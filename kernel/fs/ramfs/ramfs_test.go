package ramfs

import (
	"testing"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/errors"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/vfs"
)

func TestNewHasRootDirectory(t *testing.T) {
	fs := New()
	if !fs.IsDirectory("/") {
		t.Fatal("expected / to exist as a directory on a fresh RAMFS")
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs := New()

	h, err := fs.Open("/hello.txt", vfs.Write|vfs.Create)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := fs.Write(h, []byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fs.Close(h)

	h2, err := fs.Open("/hello.txt", vfs.Read)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	buf := make([]byte, 32)
	n, err := fs.Read(h2, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello world" {
		t.Fatalf("expected to read back \"hello world\", got %q", buf[:n])
	}
	fs.Close(h2)
}

func TestOpenWithoutCreateOnMissingFileFails(t *testing.T) {
	fs := New()
	if _, err := fs.Open("/nope.txt", vfs.Read); err == nil {
		t.Fatal("expected Open without Create to fail on a nonexistent file")
	}
}

func TestOpenDirectoryForReadFails(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	if _, err := fs.Open("/d", vfs.Read); err == nil {
		t.Fatal("expected Open on a directory path to fail")
	}
}

func TestTruncateResetsSize(t *testing.T) {
	fs := New()
	h, _ := fs.Open("/f.txt", vfs.Write|vfs.Create)
	fs.Write(h, []byte("0123456789"))
	fs.Close(h)

	h2, err := fs.Open("/f.txt", vfs.Write|vfs.Truncate)
	if err != nil {
		t.Fatalf("Open with Truncate: %v", err)
	}
	st, _ := fs.Stat("/f.txt")
	if st.Size != 0 {
		t.Fatalf("expected size 0 immediately after Truncate open, got %d", st.Size)
	}
	fs.Close(h2)
}

func TestAppendStartsAtEndOfFile(t *testing.T) {
	fs := New()
	h, _ := fs.Open("/f.txt", vfs.Write|vfs.Create)
	fs.Write(h, []byte("abc"))
	fs.Close(h)

	h2, err := fs.Open("/f.txt", vfs.Write|vfs.Append)
	if err != nil {
		t.Fatalf("Open with Append: %v", err)
	}
	fs.Write(h2, []byte("def"))
	fs.Close(h2)

	st, _ := fs.Stat("/f.txt")
	if st.Size != 6 {
		t.Fatalf("expected appended size 6, got %d", st.Size)
	}
}

func TestReadPastEOFIsShortReadNotError(t *testing.T) {
	fs := New()
	h, _ := fs.Open("/f.txt", vfs.Write|vfs.Create)
	fs.Write(h, []byte("ab"))
	fs.Close(h)

	h2, _ := fs.Open("/f.txt", vfs.Read)
	buf := make([]byte, 8)
	fs.Read(h2, buf)
	n, err := fs.Read(h2, buf)
	if err != nil {
		t.Fatalf("expected a short read at EOF to not be an error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes read at EOF, got %d", n)
	}
}

func TestWriteBeyondMaxFileSizeFails(t *testing.T) {
	fs := New()
	h, _ := fs.Open("/big.txt", vfs.Write|vfs.Create)
	big := make([]byte, MaxFileSize+1)
	if _, err := fs.Write(h, big); err == nil {
		t.Fatal("expected writing past MaxFileSize to fail")
	}
}

func TestMkdirAndRmdir(t *testing.T) {
	fs := New()
	if err := fs.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if !fs.IsDirectory("/d") {
		t.Fatal("expected /d to be a directory after Mkdir")
	}
	if err := fs.Rmdir("/d"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	if fs.Exists("/d") {
		t.Fatal("expected /d to be gone after Rmdir")
	}
}

func TestRmdirRejectsNonEmptyDirectory(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	fs.Open("/d/f.txt", vfs.Write|vfs.Create)

	if err := fs.Rmdir("/d"); err == nil {
		t.Fatal("expected Rmdir to reject a non-empty directory")
	}
}

func TestRmdirRejectsRoot(t *testing.T) {
	fs := New()
	if err := fs.Rmdir("/"); err == nil {
		t.Fatal("expected Rmdir(\"/\") to fail")
	}
}

func TestMkdirOnExistingPathFails(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	if err := fs.Mkdir("/d"); err == nil {
		t.Fatal("expected Mkdir to fail on an already-existing path")
	}
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	if err := fs.Unlink("/d"); err == nil {
		t.Fatal("expected Unlink to reject a directory")
	}
}

func TestReaddirListsImmediateChildrenOnly(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	fs.Open("/d/a.txt", vfs.Write|vfs.Create)
	fs.Mkdir("/d/sub")
	fs.Open("/d/sub/nested.txt", vfs.Write|vfs.Create)

	h, err := fs.Opendir("/d")
	if err != nil {
		t.Fatalf("Opendir: %v", err)
	}

	seen := map[string]bool{}
	for {
		de, err := fs.Readdir(h)
		if err != nil {
			break
		}
		seen[de.Name] = true
	}
	fs.Closedir(h)

	if !seen["a.txt"] || !seen["sub"] {
		t.Fatalf("expected to see immediate children a.txt and sub, got %v", seen)
	}
	if seen["nested.txt"] {
		t.Fatal("expected Readdir to not recurse into subdirectories")
	}
}

func TestRenameFileUpdatesPath(t *testing.T) {
	fs := New()
	fs.Open("/a.txt", vfs.Write|vfs.Create)

	if err := fs.Rename("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if fs.Exists("/a.txt") {
		t.Fatal("expected the old path to no longer exist after Rename")
	}
	if !fs.Exists("/b.txt") {
		t.Fatal("expected the new path to exist after Rename")
	}
}

func TestRenameDirectoryMovesChildren(t *testing.T) {
	fs := New()
	fs.Mkdir("/d")
	fs.Open("/d/f.txt", vfs.Write|vfs.Create)

	if err := fs.Rename("/d", "/e"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !fs.Exists("/e/f.txt") {
		t.Fatal("expected the child to move along with its renamed parent directory")
	}
}

func TestRenameOntoExistingPathFails(t *testing.T) {
	fs := New()
	fs.Open("/a.txt", vfs.Write|vfs.Create)
	fs.Open("/b.txt", vfs.Write|vfs.Create)

	if err := fs.Rename("/a.txt", "/b.txt"); err == nil {
		t.Fatal("expected Rename onto an existing path to fail")
	}
}

func TestFreeBytesCountsOnlyEmptySlots(t *testing.T) {
	fs := New()
	before := fs.FreeBytes()

	fs.Open("/a.txt", vfs.Write|vfs.Create)

	after := fs.FreeBytes()
	if after != before-MaxFileSize {
		t.Fatalf("expected FreeBytes to drop by exactly one slot's capacity, before=%d after=%d", before, after)
	}
}

func TestOpenTableFull(t *testing.T) {
	fs := New()
	var handles []vfs.Handle
	for i := 0; i < MaxOpenHandles; i++ {
		h, err := fs.Open("/root.txt", vfs.Read|vfs.Create)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	if _, err := fs.Open("/root.txt", vfs.Read); err == nil {
		t.Fatal("expected Open to fail once the handle table is saturated")
	}
	_ = errors.ErrTableFull
}
