// Package ramfs implements the RAM-backed fallback filesystem of spec.md
// §4.7.2: a flat array of fixed-size entries addressed by full path, used
// when VFS auto-detection (kernel/fs/fat32) finds no usable on-disk
// filesystem. Grounded on original_source/kernel/fs/ramfs.cpp for the
// entry-table semantics (flat scan, synthesized directory listing); the
// free-space accounting bug noted in spec.md §9 ("(MAX_FILES-file_count) *
// MAX_FILE_SIZE overstates capacity") is corrected here to sum the
// remaining byte capacity of empty slots, per that note's own resolution.
package ramfs

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/errors"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/vfs"
)

// MaxFiles is the fixed entry-table capacity (spec.md §4.7.2).
const MaxFiles = 64

// MaxFileSize is the fixed per-file data capacity.
const MaxFileSize = 64 * 1024

type entryType uint8

const (
	typeEmpty entryType = iota
	typeFile
	typeDirectory
)

type entry struct {
	used   bool
	path   string // full absolute path, e.g. "/etc/motd"
	typ    entryType
	size   uint64
	parent int // index of the parent directory entry, or -1 for "/"
	data   [MaxFileSize]byte
}

// MaxOpenHandles bounds the per-filesystem open-handle table; it mirrors
// vfs.MaxOpenFiles since every fd the VFS hands out threads through exactly
// one of these slots.
const MaxOpenHandles = 64

// FS is a RAMFS instance. The zero value is not ready for use; call Mount.
type FS struct {
	entries [MaxFiles]entry
	handles [MaxOpenHandles]handleSlot
}

// New returns a freshly initialized RAMFS with just the root directory.
func New() *FS {
	fs := &FS{}
	fs.entries[0] = entry{used: true, path: "/", typ: typeDirectory, parent: -1}
	return fs
}

// handleSlot is one entry of the open-handle table; Open/Opendir return its
// index as a vfs.Handle instead of a pointer, so no handle ever escapes to
// the Go heap.
type handleSlot struct {
	used   bool
	idx    int
	offset uint64

	// directory-stream state
	isDir   bool
	dirNext int // next candidate index to scan in Readdir
}

func (fs *FS) allocHandle() vfs.Handle {
	for i := range fs.handles {
		if !fs.handles[i].used {
			return vfs.Handle(i)
		}
	}
	return vfs.NoHandle
}

// Mount is a no-op beyond recording that the filesystem is in use; RAMFS has
// no backing block device.
func (fs *FS) Mount(dev block.Device) *kernel.Error {
	if fs.entries[0].path == "" {
		fs.entries[0] = entry{used: true, path: "/", typ: typeDirectory, parent: -1}
	}
	return nil
}

// Unmount discards all in-memory file data.
func (fs *FS) Unmount() {
	for i := range fs.entries {
		fs.entries[i] = entry{}
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	if len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func (fs *FS) find(path string) int {
	path = cleanPath(path)
	for i := range fs.entries {
		if fs.entries[i].used && fs.entries[i].path == path {
			return i
		}
	}
	return -1
}

func parentPath(path string) string {
	if path == "/" {
		return "/"
	}
	i := len(path) - 1
	for i > 0 && path[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func (fs *FS) freeSlot() int {
	for i := range fs.entries {
		if !fs.entries[i].used {
			return i
		}
	}
	return -1
}

// Open implements vfs.Filesystem. Create materializes a nonexistent file;
// Truncate resets its size to zero.
func (fs *FS) Open(relPath string, mode vfs.OpenMode) (vfs.Handle, *kernel.Error) {
	path := cleanPath(relPath)
	idx := fs.find(path)

	if idx < 0 {
		if mode&vfs.Create == 0 {
			return vfs.NoHandle, kerr(errors.ErrNotFound)
		}
		parentIdx := fs.find(parentPath(path))
		if parentIdx < 0 || fs.entries[parentIdx].typ != typeDirectory {
			return vfs.NoHandle, kerr(errors.ErrNotDirectory)
		}
		slot := fs.freeSlot()
		if slot < 0 {
			return vfs.NoHandle, kerr(errors.ErrNoSpace)
		}
		fs.entries[slot] = entry{used: true, path: path, typ: typeFile, parent: parentIdx}
		idx = slot
	}

	if fs.entries[idx].typ == typeDirectory {
		return vfs.NoHandle, kerr(errors.ErrIsDirectory)
	}

	if mode&vfs.Truncate != 0 {
		fs.entries[idx].size = 0
	}

	h := fs.allocHandle()
	if h == vfs.NoHandle {
		return vfs.NoHandle, kerr(errors.ErrTableFull)
	}
	fs.handles[h] = handleSlot{used: true, idx: idx}
	if mode&vfs.Append != 0 {
		fs.handles[h].offset = fs.entries[idx].size
	}
	return h, nil
}

func (fs *FS) Close(h vfs.Handle) { fs.handles[h] = handleSlot{} }

func (fs *FS) Read(h vfs.Handle, buf []byte) (int, *kernel.Error) {
	hd := &fs.handles[h]
	e := &fs.entries[hd.idx]
	if hd.offset >= e.size {
		return 0, nil // short read at EOF, not an error
	}
	n := copy(buf, e.data[hd.offset:e.size])
	hd.offset += uint64(n)
	return n, nil
}

func (fs *FS) Write(h vfs.Handle, buf []byte) (int, *kernel.Error) {
	hd := &fs.handles[h]
	e := &fs.entries[hd.idx]

	end := hd.offset + uint64(len(buf))
	if end > MaxFileSize {
		return 0, kerr(errors.ErrNoSpace)
	}

	n := copy(e.data[hd.offset:end], buf)
	hd.offset += uint64(n)
	if hd.offset > e.size {
		e.size = hd.offset
	}
	return n, nil
}

func (fs *FS) Seek(h vfs.Handle, absOffset uint64) *kernel.Error {
	fs.handles[h].offset = absOffset
	return nil
}

func (fs *FS) Opendir(relPath string) (vfs.Handle, *kernel.Error) {
	idx := fs.find(relPath)
	if idx < 0 {
		return vfs.NoHandle, kerr(errors.ErrNotFound)
	}
	if fs.entries[idx].typ != typeDirectory {
		return vfs.NoHandle, kerr(errors.ErrNotDirectory)
	}
	h := fs.allocHandle()
	if h == vfs.NoHandle {
		return vfs.NoHandle, kerr(errors.ErrTableFull)
	}
	fs.handles[h] = handleSlot{used: true, idx: idx, isDir: true, dirNext: 0}
	return h, nil
}

// Readdir synthesizes one entry per call by scanning for paths that start
// with the directory's path followed by exactly one "/" and no further
// slash, per spec.md §4.7.2. Readdir of a consumed stream returns NotFound.
func (fs *FS) Readdir(h vfs.Handle) (vfs.DirEntry, *kernel.Error) {
	hd := &fs.handles[h]
	dirPath := fs.entries[hd.idx].path
	prefix := dirPath
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}

	for i := hd.dirNext; i < MaxFiles; i++ {
		hd.dirNext = i + 1
		e := &fs.entries[i]
		if !e.used || e.path == dirPath {
			continue
		}
		if len(e.path) <= len(prefix) || e.path[:len(prefix)] != prefix {
			continue
		}
		rest := e.path[len(prefix):]
		if containsSlash(rest) {
			continue // not an immediate child
		}
		return vfs.DirEntry{Name: rest, Size: e.size, IsDirectory: e.typ == typeDirectory}, nil
	}
	return vfs.DirEntry{}, kerr(errors.ErrNotFound)
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

func (fs *FS) Closedir(h vfs.Handle) { fs.handles[h] = handleSlot{} }

func (fs *FS) Stat(relPath string) (vfs.Stat, *kernel.Error) {
	idx := fs.find(relPath)
	if idx < 0 {
		return vfs.Stat{}, kerr(errors.ErrNotFound)
	}
	e := &fs.entries[idx]
	return vfs.Stat{Size: e.size, IsDirectory: e.typ == typeDirectory}, nil
}

func (fs *FS) Mkdir(relPath string) *kernel.Error {
	path := cleanPath(relPath)
	if fs.find(path) >= 0 {
		return kerr(errors.ErrAlreadyExists)
	}
	parentIdx := fs.find(parentPath(path))
	if parentIdx < 0 || fs.entries[parentIdx].typ != typeDirectory {
		return kerr(errors.ErrNotDirectory)
	}
	slot := fs.freeSlot()
	if slot < 0 {
		return kerr(errors.ErrNoSpace)
	}
	fs.entries[slot] = entry{used: true, path: path, typ: typeDirectory, parent: parentIdx}
	return nil
}

func (fs *FS) Unlink(relPath string) *kernel.Error {
	idx := fs.find(relPath)
	if idx < 0 {
		return kerr(errors.ErrNotFound)
	}
	if fs.entries[idx].typ == typeDirectory {
		return kerr(errors.ErrIsDirectory)
	}
	fs.entries[idx] = entry{}
	return nil
}

func (fs *FS) Rmdir(relPath string) *kernel.Error {
	path := cleanPath(relPath)
	idx := fs.find(path)
	if idx < 0 {
		return kerr(errors.ErrNotFound)
	}
	if fs.entries[idx].typ != typeDirectory {
		return kerr(errors.ErrNotDirectory)
	}
	if path == "/" {
		return kerr(errors.ErrPermissionDenied)
	}

	prefix := path + "/"
	for i := range fs.entries {
		if fs.entries[i].used && len(fs.entries[i].path) > len(prefix) && fs.entries[i].path[:len(prefix)] == prefix {
			return kerr(errors.ErrDirectoryNotEmpty)
		}
	}
	fs.entries[idx] = entry{}
	return nil
}

func (fs *FS) Rename(oldPath, newPath string) *kernel.Error {
	oldP, newP := cleanPath(oldPath), cleanPath(newPath)
	idx := fs.find(oldP)
	if idx < 0 {
		return kerr(errors.ErrNotFound)
	}
	if fs.find(newP) >= 0 {
		return kerr(errors.ErrAlreadyExists)
	}
	newParentIdx := fs.find(parentPath(newP))
	if newParentIdx < 0 || fs.entries[newParentIdx].typ != typeDirectory {
		return kerr(errors.ErrNotDirectory)
	}

	oldPrefix := oldP + "/"
	for i := range fs.entries {
		if !fs.entries[i].used {
			continue
		}
		if fs.entries[i].path == oldP {
			fs.entries[i].path = newP
			fs.entries[i].parent = newParentIdx
		} else if len(fs.entries[i].path) > len(oldPrefix) && fs.entries[i].path[:len(oldPrefix)] == oldPrefix {
			fs.entries[i].path = newP + "/" + fs.entries[i].path[len(oldPrefix):]
		}
	}
	return nil
}

func (fs *FS) IsDirectory(relPath string) bool {
	idx := fs.find(relPath)
	return idx >= 0 && fs.entries[idx].typ == typeDirectory
}

func (fs *FS) Exists(relPath string) bool {
	return fs.find(relPath) >= 0
}

// FreeBytes returns the sum of remaining byte capacity across empty slots
// (spec.md §9's corrected free-space metric, replacing the original's
// overstated "(MAX_FILES-file_count) * MAX_FILE_SIZE", which counted
// directory entries as if they too held a full MAX_FILE_SIZE of spare file
// capacity).
func (fs *FS) FreeBytes() uint64 {
	var free uint64
	for i := range fs.entries {
		if !fs.entries[i].used {
			free += MaxFileSize
		}
	}
	return free
}

func kerr(s errors.KernelError) *kernel.Error {
	return &kernel.Error{Module: "ramfs", Message: string(s)}
}
