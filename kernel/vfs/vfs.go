// Package vfs implements the mount-table + dispatching layer of spec.md
// §4.7: a fixed mount table keyed by absolute normalized path, longest-
// prefix path resolution, and a fixed-size open-file-descriptor table. The
// Filesystem capability interface replaces the original's C++ inheritance
// hierarchy (spec.md §9's "rephrase inheritance as a capability set" note),
// generalized from the teacher's device.Driver/console.Device
// capability-interface pattern (kernel/hal/hal.go's driver-probe dispatch).
package vfs

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
)

// OpenMode is a flag set drawn from {Read, Write, Create, Append,
// Truncate}, per spec.md §4.7.
type OpenMode uint8

const (
	Read OpenMode = 1 << iota
	Write
	Create
	Append
	Truncate
)

// DirEntry is one record returned by Readdir.
type DirEntry struct {
	Name        string
	Size        uint64
	IsDirectory bool
	ModTime     uint64 // opaque filesystem timestamp, not wall-clock calibrated
}

// Stat describes a filesystem object.
type Stat struct {
	Size        uint64
	IsDirectory bool
	ModTime     uint64
}

// Handle is a filesystem-internal handle opaque to the VFS: an index into
// the concrete filesystem's own fixed-size open-handle table. Using a plain
// integer rather than a pointer or interface value means opening a file
// never asks the Go allocator for anything, consistent with every other
// table in this tree (the scheduler's task table, the block registry).
type Handle = int32

// NoHandle is the zero-value-free invalid handle returned alongside an
// error.
const NoHandle Handle = -1

// Filesystem is the capability set spec.md §4.7 requires of every concrete
// filesystem driver (fat32, ramfs).
type Filesystem interface {
	Mount(dev block.Device) *kernel.Error
	Unmount()

	Open(relPath string, mode OpenMode) (Handle, *kernel.Error)
	Close(h Handle)
	Read(h Handle, buf []byte) (int, *kernel.Error)
	Write(h Handle, buf []byte) (int, *kernel.Error)
	Seek(h Handle, absOffset uint64) *kernel.Error

	Opendir(relPath string) (Handle, *kernel.Error)
	Readdir(h Handle) (DirEntry, *kernel.Error)
	Closedir(h Handle)

	Stat(relPath string) (Stat, *kernel.Error)
	Mkdir(relPath string) *kernel.Error
	Unlink(relPath string) *kernel.Error
	Rmdir(relPath string) *kernel.Error
	Rename(oldPath, newPath string) *kernel.Error

	IsDirectory(relPath string) bool
	Exists(relPath string) bool
}

var (
	ErrNoMount     = &kernel.Error{Module: "vfs", Message: "no mount point for path"}
	ErrMountFull   = &kernel.Error{Module: "vfs", Message: "mount table full"}
	ErrFDTableFull = &kernel.Error{Module: "vfs", Message: "file descriptor table full"}
	ErrBadFD       = &kernel.Error{Module: "vfs", Message: "bad file descriptor"}
)

// MaxMounts bounds the mount table, per spec.md §3 ("≤ 8 entries").
const MaxMounts = 8

// MaxOpenFiles bounds the system-wide fd table, per spec.md §3 ("≤ 64 open
// files system-wide").
const MaxOpenFiles = 64

type mount struct {
	valid bool
	path  string // absolute, normalized, no trailing slash except "/"
	fs    Filesystem
	dev   block.Device // nil for device-less filesystems (e.g. ramfs)
}

var mounts [MaxMounts]mount

type fileDescriptor struct {
	valid  bool
	mIdx   int
	handle Handle
	mode   OpenMode
	offset uint64
}

var fds [MaxOpenFiles]fileDescriptor

// Reset clears the mount table and fd table; used by tests and re-init.
func Reset() {
	for i := range mounts {
		mounts[i] = mount{}
	}
	for i := range fds {
		fds[i] = fileDescriptor{}
	}
}

// normalize strips a trailing slash from path unless path is exactly "/".
func normalize(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	if path[len(path)-1] == '/' {
		return path[:len(path)-1]
	}
	return path
}

// Mount attaches fs (already Mount()-ed onto dev, or nil for a device-less
// filesystem like ramfs) at path. Returns ErrMountFull if the table is full.
func Mount(path string, fs Filesystem, dev block.Device) *kernel.Error {
	path = normalize(path)
	for i := range mounts {
		if !mounts[i].valid {
			mounts[i] = mount{valid: true, path: path, fs: fs, dev: dev}
			return nil
		}
	}
	return ErrMountFull
}

// Unmount detaches whatever filesystem is mounted at path.
func Unmount(path string) {
	path = normalize(path)
	for i := range mounts {
		if mounts[i].valid && mounts[i].path == path {
			mounts[i].fs.Unmount()
			mounts[i] = mount{}
			return
		}
	}
}

// resolve finds the mount point with the longest matching prefix of abs,
// returning its index and the path remainder (relative to that mount) to
// pass to the filesystem driver.
func resolve(abs string) (int, string, *kernel.Error) {
	best := -1
	bestLen := -1
	for i := range mounts {
		if !mounts[i].valid {
			continue
		}
		mp := mounts[i].path
		if mp == "/" {
			if bestLen < 0 {
				best, bestLen = i, 0
			}
			continue
		}
		if len(abs) >= len(mp) && abs[:len(mp)] == mp &&
			(len(abs) == len(mp) || abs[len(mp)] == '/') {
			if len(mp) > bestLen {
				best, bestLen = i, len(mp)
			}
		}
	}
	if best < 0 {
		return -1, "", ErrNoMount
	}

	rel := abs[bestLen:]
	if rel == "" {
		rel = "/"
	}
	return best, rel, nil
}

func allocFD() int {
	for i := range fds {
		if !fds[i].valid {
			return i
		}
	}
	return -1
}

// Open resolves path to a mount point and opens it there, returning a
// system-wide file descriptor.
func Open(path string, mode OpenMode) (int, *kernel.Error) {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return -1, err
	}

	h, err := mounts[mIdx].fs.Open(rel, mode)
	if err != nil {
		return -1, err
	}

	fdIdx := allocFD()
	if fdIdx < 0 {
		mounts[mIdx].fs.Close(h)
		return -1, ErrFDTableFull
	}

	fds[fdIdx] = fileDescriptor{valid: true, mIdx: mIdx, handle: h, mode: mode}
	return fdIdx, nil
}

// Close releases fd. Closing an invalid fd is a no-op.
func Close(fd int) {
	if fd < 0 || fd >= MaxOpenFiles || !fds[fd].valid {
		return
	}
	mounts[fds[fd].mIdx].fs.Close(fds[fd].handle)
	fds[fd] = fileDescriptor{}
}

func checkFD(fd int) (*fileDescriptor, *kernel.Error) {
	if fd < 0 || fd >= MaxOpenFiles || !fds[fd].valid {
		return nil, ErrBadFD
	}
	return &fds[fd], nil
}

// ReadFD reads into buf from fd's current offset, advancing it. Short reads
// at EOF are not an error, per spec.md §4.7.
func ReadFD(fd int, buf []byte) (int, *kernel.Error) {
	f, err := checkFD(fd)
	if err != nil {
		return 0, err
	}
	n, err := mounts[f.mIdx].fs.Read(f.handle, buf)
	f.offset += uint64(n)
	return n, err
}

// WriteFD writes buf at fd's current offset, advancing it.
func WriteFD(fd int, buf []byte) (int, *kernel.Error) {
	f, err := checkFD(fd)
	if err != nil {
		return 0, err
	}
	n, err := mounts[f.mIdx].fs.Write(f.handle, buf)
	f.offset += uint64(n)
	return n, err
}

// Seek moves fd's offset to absOffset.
func Seek(fd int, absOffset uint64) *kernel.Error {
	f, err := checkFD(fd)
	if err != nil {
		return err
	}
	if err := mounts[f.mIdx].fs.Seek(f.handle, absOffset); err != nil {
		return err
	}
	f.offset = absOffset
	return nil
}

// StatPath resolves path and returns its filesystem metadata.
func StatPath(path string) (Stat, *kernel.Error) {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return Stat{}, err
	}
	return mounts[mIdx].fs.Stat(rel)
}

// Mkdir creates a directory at path.
func Mkdir(path string) *kernel.Error {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return err
	}
	return mounts[mIdx].fs.Mkdir(rel)
}

// Unlink removes the file at path.
func Unlink(path string) *kernel.Error {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return err
	}
	return mounts[mIdx].fs.Unlink(rel)
}

// Rmdir removes the empty directory at path.
func Rmdir(path string) *kernel.Error {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return err
	}
	return mounts[mIdx].fs.Rmdir(rel)
}

// Rename moves oldPath to newPath. Both must resolve to the same mount
// point; cross-mount rename is Unsupported.
func Rename(oldPath, newPath string) *kernel.Error {
	oldIdx, oldRel, err := resolve(oldPath)
	if err != nil {
		return err
	}
	newIdx, newRel, err := resolve(newPath)
	if err != nil {
		return err
	}
	if oldIdx != newIdx {
		return &kernel.Error{Module: "vfs", Message: "cross-mount rename unsupported"}
	}
	return mounts[oldIdx].fs.Rename(oldRel, newRel)
}

// IsDirectory resolves path and reports whether it names a directory.
func IsDirectory(path string) bool {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return false
	}
	return mounts[mIdx].fs.IsDirectory(rel)
}

// Exists resolves path and reports whether it names an existing object.
func Exists(path string) bool {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return false
	}
	return mounts[mIdx].fs.Exists(rel)
}

// Opendir/Readdir/Closedir mirror Open/Read/Close but over directory
// streams; readdir of a consumed stream returns errors.ErrNotFound (spec.md
// §4.7), surfaced by the underlying filesystem driver.
func Opendir(path string) (int, *kernel.Error) {
	mIdx, rel, err := resolve(path)
	if err != nil {
		return -1, err
	}
	h, err := mounts[mIdx].fs.Opendir(rel)
	if err != nil {
		return -1, err
	}
	fdIdx := allocFD()
	if fdIdx < 0 {
		mounts[mIdx].fs.Closedir(h)
		return -1, ErrFDTableFull
	}
	fds[fdIdx] = fileDescriptor{valid: true, mIdx: mIdx, handle: h}
	return fdIdx, nil
}

func Readdir(fd int) (DirEntry, *kernel.Error) {
	f, err := checkFD(fd)
	if err != nil {
		return DirEntry{}, err
	}
	return mounts[f.mIdx].fs.Readdir(f.handle)
}

func Closedir(fd int) {
	if fd < 0 || fd >= MaxOpenFiles || !fds[fd].valid {
		return
	}
	mounts[fds[fd].mIdx].fs.Closedir(fds[fd].handle)
	fds[fd] = fileDescriptor{}
}
