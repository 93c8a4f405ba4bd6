// Package fat32 implements the primary on-disk filesystem driver of spec.md
// §4.7.1: boot-sector parsing, FAT-chain traversal, short-name (8.3) path
// lookup, cluster-granular read and write, and file/directory creation. The
// on-disk layout and cluster/FAT algorithms are those of the FAT32 standard
// as summarized in spec.md §3/§4.7.1/§6; little-endian struct decoding
// follows the idiom in _examples/other_examples' FAT/exFAT Go ports
// (b5600549_soypat-fat, 0aabc906_dsoprea-go-exfat,
// 487c7707_ostafen-digler) — manual binary.LittleEndian field reads rather
// than a packed-struct cast, since Go gives no layout guarantee for structs.
// FAT32 write support, TODO'd in original_source, is fully implemented here
// per spec.md §9's explicit resolution of that open question.
package fat32

import (
	"encoding/binary"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/errors"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/vfs"
)

const (
	bootSectorSize = 512

	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = attrReadOnly | attrHidden | attrSystem | attrVolumeID

	dirEntrySize = 32

	fatEOCMin    = 0x0FFFFFF8
	fatBadMark   = 0x0FFFFFF7
	fatFreeMark  = 0x00000000
	fatEntryMask = 0x0FFFFFFF

	// maxClusterBytes bounds the driver's single scratch cluster buffer
	// (spec.md §3's "an in-memory scratch cluster buffer", singular).
	maxClusterBytes = 64 * 1024
)

// FS is one mounted FAT32 instance (spec.md §3's FAT32 filesystem state).
type FS struct {
	dev block.Device

	sectorSize        uint32
	sectorsPerCluster uint32
	reservedSectors   uint32
	fatCount          uint32
	fatSizeSectors    uint32
	rootCluster       uint32
	fatBeginLBA       uint64
	clusterBeginLBA   uint64
	totalClusters     uint32
	volumeLabel       string

	clusterBuf [maxClusterBytes]byte
	handles    [MaxOpenHandles]openHandle
}

// New returns an unmounted FAT32 driver instance.
func New() *FS { return &FS{} }

func kerr(s errors.KernelError) *kernel.Error {
	return &kernel.Error{Module: "fat32", Message: string(s)}
}

// Probe reads just enough of dev's boot sector to report whether it looks
// like a FAT32 volume, without fully mounting — used by kmain's VFS
// auto-detect sweep over discovered partitions (spec.md §4.7).
func Probe(dev block.Device) bool {
	var sector [bootSectorSize]byte
	if err := dev.ReadSectors(0, 1, sector[:]); err != nil {
		return false
	}
	if binary.LittleEndian.Uint16(sector[510:512]) != 0x55AA {
		return false
	}
	bytesPerSector := binary.LittleEndian.Uint16(sector[11:13])
	fatSize16 := binary.LittleEndian.Uint16(sector[22:24])
	fatSize32 := binary.LittleEndian.Uint32(sector[36:40])
	return bytesPerSector == bootSectorSize && fatSize16 == 0 && fatSize32 > 0
}

// Mount parses the boot sector, validates it, and caches the parameters
// spec.md §3 names. Fails with Unsupported if validation fails.
func (fs *FS) Mount(dev block.Device) *kernel.Error {
	fs.dev = dev

	var sector [bootSectorSize]byte
	if err := dev.ReadSectors(0, 1, sector[:]); err != nil {
		return err
	}

	if binary.LittleEndian.Uint16(sector[510:512]) != 0x55AA {
		return kerr(errors.ErrUnsupported)
	}

	bytesPerSector := binary.LittleEndian.Uint16(sector[11:13])
	sectorsPerCluster := sector[13]
	reservedSectors := binary.LittleEndian.Uint16(sector[14:16])
	numFATs := sector[16]
	fatSize16 := binary.LittleEndian.Uint16(sector[22:24])
	fatSize32 := binary.LittleEndian.Uint32(sector[36:40])
	rootCluster := binary.LittleEndian.Uint32(sector[44:48])
	volLab := sector[71:82]

	totalSec16 := binary.LittleEndian.Uint16(sector[19:21])
	totalSec32 := binary.LittleEndian.Uint32(sector[32:36])
	totalSectors := uint32(totalSec16)
	if totalSectors == 0 {
		totalSectors = totalSec32
	}

	if bytesPerSector != bootSectorSize || fatSize16 != 0 || fatSize32 == 0 {
		return kerr(errors.ErrUnsupported)
	}
	if uint32(sectorsPerCluster)*uint32(bytesPerSector) > maxClusterBytes {
		return kerr(errors.ErrUnsupported)
	}

	fs.sectorSize = uint32(bytesPerSector)
	fs.sectorsPerCluster = uint32(sectorsPerCluster)
	fs.reservedSectors = uint32(reservedSectors)
	fs.fatCount = uint32(numFATs)
	fs.fatSizeSectors = fatSize32
	fs.rootCluster = rootCluster
	fs.fatBeginLBA = uint64(reservedSectors)
	fs.clusterBeginLBA = uint64(reservedSectors) + uint64(numFATs)*uint64(fatSize32)
	fs.volumeLabel = trimTrailingSpaces(string(volLab))

	dataSectors := totalSectors - uint32(fs.clusterBeginLBA)
	fs.totalClusters = dataSectors / fs.sectorsPerCluster

	return nil
}

func (fs *FS) Unmount() {}

func trimTrailingSpaces(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}

func (fs *FS) clusterSize() uint32 { return fs.sectorsPerCluster * fs.sectorSize }

// clusterToLBA implements spec.md §4.7.1's cluster_to_lba formula.
func (fs *FS) clusterToLBA(c uint32) uint64 {
	return fs.clusterBeginLBA + uint64(c-2)*uint64(fs.sectorsPerCluster)
}

// readCluster reads cluster c in full into fs.clusterBuf[:clusterSize()].
func (fs *FS) readCluster(c uint32) *kernel.Error {
	return fs.dev.ReadSectors(fs.clusterToLBA(c), fs.sectorsPerCluster, fs.clusterBuf[:fs.clusterSize()])
}

// writeCluster writes fs.clusterBuf[:clusterSize()] back to cluster c.
func (fs *FS) writeCluster(c uint32) *kernel.Error {
	return fs.dev.WriteSectors(fs.clusterToLBA(c), fs.sectorsPerCluster, fs.clusterBuf[:fs.clusterSize()])
}

// nextCluster implements spec.md §4.7.1's FAT traversal: read the FAT
// sector containing byte offset 4*c, extract the 32-bit value, mask to 28
// bits.
func (fs *FS) nextCluster(c uint32) (uint32, *kernel.Error) {
	byteOffset := uint64(c) * 4
	sector := fs.fatBeginLBA + byteOffset/uint64(fs.sectorSize)
	offsetInSector := uint32(byteOffset % uint64(fs.sectorSize))

	var buf [512]byte
	if err := fs.dev.ReadSectors(sector, 1, buf[:fs.sectorSize]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[offsetInSector:offsetInSector+4]) & fatEntryMask, nil
}

// setNextCluster writes val into cluster c's FAT entry, in every FAT copy
// (spec.md §4.7.1's write algorithm: "must be written to every FAT copy").
func (fs *FS) setNextCluster(c uint32, val uint32) *kernel.Error {
	byteOffset := uint64(c) * 4
	sectorOffset := byteOffset / uint64(fs.sectorSize)
	offsetInSector := uint32(byteOffset % uint64(fs.sectorSize))

	var buf [512]byte
	for f := uint32(0); f < fs.fatCount; f++ {
		sector := fs.fatBeginLBA + uint64(f)*uint64(fs.fatSizeSectors) + sectorOffset
		if err := fs.dev.ReadSectors(sector, 1, buf[:fs.sectorSize]); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[offsetInSector:offsetInSector+4], val&fatEntryMask)
		if err := fs.dev.WriteSectors(sector, 1, buf[:fs.sectorSize]); err != nil {
			return err
		}
	}
	return nil
}

func isEndOfChain(c uint32) bool { return c >= fatEOCMin }

// allocCluster scans the FAT for a free entry (value 0), marks it
// end-of-chain, and returns its number, or 0 (with NoSpace) if the FAT is
// exhausted.
func (fs *FS) allocCluster() (uint32, *kernel.Error) {
	for c := uint32(2); c < fs.totalClusters+2; c++ {
		v, err := fs.nextCluster(c)
		if err != nil {
			return 0, err
		}
		if v == fatFreeMark {
			if err := fs.setNextCluster(c, fatEOCMin); err != nil {
				return 0, err
			}
			return c, nil
		}
	}
	return 0, kerr(errors.ErrNoSpace)
}

// appendCluster allocates a new cluster and links it as the new tail of
// startCluster's chain, returning the new cluster number.
func (fs *FS) appendCluster(startCluster uint32) (uint32, *kernel.Error) {
	tail := startCluster
	for {
		next, err := fs.nextCluster(tail)
		if err != nil {
			return 0, err
		}
		if isEndOfChain(next) || next == fatBadMark {
			break
		}
		tail = next
	}

	newCluster, err := fs.allocCluster()
	if err != nil {
		return 0, err
	}
	if err := fs.setNextCluster(tail, newCluster); err != nil {
		return 0, err
	}
	return newCluster, nil
}

// freeChain releases every cluster in start's chain back to the free pool.
func (fs *FS) freeChain(start uint32) *kernel.Error {
	c := start
	for c != 0 && !isEndOfChain(c) && c != fatBadMark {
		next, err := fs.nextCluster(c)
		if err != nil {
			return err
		}
		if err := fs.setNextCluster(c, fatFreeMark); err != nil {
			return err
		}
		c = next
	}
	return nil
}

// shortEntry is a parsed 32-byte directory record plus its on-disk location
// (cluster + byte offset within that cluster), so callers can write
// modified size/cluster fields back without re-scanning.
type shortEntry struct {
	name    shortName
	attr    uint8
	cluster uint32
	size    uint32

	locCluster uint32
	locOffset  uint32
}

func (e shortEntry) isDirectory() bool { return e.attr&attrDirectory != 0 }

// shortName holds a reconstructed "NAME.EXT" (or "NAME") short name in a
// fixed buffer rather than a Go string, so decoding one never asks the Go
// allocator for anything; a string is only materialized at the point
// (Readdir, Stat) where the VFS boundary itself requires one.
type shortName struct {
	buf [12]byte
	n   uint8
}

func (s shortName) String() string { return string(s.buf[:s.n]) }

func (s shortName) isDot() bool    { return s.n == 1 && s.buf[0] == '.' }
func (s shortName) isDotDot() bool { return s.n == 2 && s.buf[0] == '.' && s.buf[1] == '.' }

// equalsFold reports whether s equals other, case-insensitively, without
// allocating.
func (s shortName) equalsFold(other string) bool {
	if int(s.n) != len(other) {
		return false
	}
	for i := 0; i < int(s.n); i++ {
		ca, cb := s.buf[i], other[i]
		if ca >= 'a' && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if cb >= 'a' && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func decodeShortName(raw []byte) shortName {
	var s shortName
	baseEnd := 8
	for baseEnd > 0 && raw[baseEnd-1] == ' ' {
		baseEnd--
	}
	copy(s.buf[:], raw[0:baseEnd])
	s.n = uint8(baseEnd)

	extEnd := 11
	for extEnd > 8 && raw[extEnd-1] == ' ' {
		extEnd--
	}
	if extEnd > 8 {
		s.buf[s.n] = '.'
		s.n++
		copy(s.buf[s.n:], raw[8:extEnd])
		s.n += uint8(extEnd - 8)
	}
	return s
}

// walkDir scans every 32-byte record across dirCluster's chain, invoking fn
// for each live (non-deleted, non-LFN) short-name entry. fn returns true to
// stop the walk early. walkDir stops at the first 0x00 name byte
// (end-of-directory marker) per spec.md §4.7.1.
func (fs *FS) walkDir(dirCluster uint32, fn func(shortEntry) bool) *kernel.Error {
	c := dirCluster
	for {
		if err := fs.readCluster(c); err != nil {
			return err
		}

		entriesPerCluster := fs.clusterSize() / dirEntrySize
		for i := uint32(0); i < entriesPerCluster; i++ {
			off := i * dirEntrySize
			raw := fs.clusterBuf[off : off+dirEntrySize]

			if raw[0] == 0x00 {
				return nil // end of directory
			}
			if raw[0] == 0xE5 {
				continue // deleted
			}
			attr := raw[11]
			if attr == attrLongName {
				continue // LFN component; short names are authoritative (spec.md §4.7.1)
			}
			if attr&attrVolumeID != 0 {
				continue // hidden from callers
			}

			clusHi := binary.LittleEndian.Uint16(raw[20:22])
			clusLo := binary.LittleEndian.Uint16(raw[26:28])
			size := binary.LittleEndian.Uint32(raw[28:32])

			e := shortEntry{
				name:       decodeShortName(raw[0:11]),
				attr:       attr,
				cluster:    uint32(clusHi)<<16 | uint32(clusLo),
				size:       size,
				locCluster: c,
				locOffset:  off,
			}
			if fn(e) {
				return nil
			}
		}

		next, err := fs.nextCluster(c)
		if err != nil {
			return err
		}
		if isEndOfChain(next) {
			return nil
		}
		c = next
	}
}

// findInDir looks up name (case-insensitive) among dirCluster's direct
// children.
func (fs *FS) findInDir(dirCluster uint32, name string) (shortEntry, bool, *kernel.Error) {
	var found shortEntry
	ok := false
	err := fs.walkDir(dirCluster, func(e shortEntry) bool {
		if e.name.equalsFold(name) {
			found = e
			ok = true
			return true
		}
		return false
	})
	return found, ok, err
}

// findShortNameInDir looks up a candidate short name built by makeShortName,
// avoiding a round trip through a Go string for the comparison.
func (fs *FS) findShortNameInDir(dirCluster uint32, candidate shortName) (bool, *kernel.Error) {
	found := false
	err := fs.walkDir(dirCluster, func(e shortEntry) bool {
		if e.name.n == candidate.n && e.name.buf == candidate.buf {
			found = true
			return true
		}
		return false
	})
	return found, err
}

// maxPathDepth bounds the number of path components lookup() and
// lookupParentAndName() can resolve in one call, avoiding a heap-backed
// slice for path splitting (no Go allocator is wired up this early in
// boot; see kernel/mm/heap for the only allocator the kernel itself uses).
const maxPathDepth = 24

type pathParts struct {
	n     int
	parts [maxPathDepth]string
}

func splitPath(path string) pathParts {
	var p pathParts
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' || path[i] == '\\' {
			if i > start && p.n < maxPathDepth {
				p.parts[p.n] = path[start:i]
				p.n++
			}
			start = i + 1
		}
	}
	return p
}

// lookup resolves an absolute-from-mount-root path to its directory entry,
// per spec.md §4.7.1's path-lookup algorithm.
func (fs *FS) lookup(path string) (shortEntry, *kernel.Error) {
	parts := splitPath(path)
	if parts.n == 0 {
		root := shortName{n: 1}
		root.buf[0] = '/'
		return shortEntry{name: root, attr: attrDirectory, cluster: fs.rootCluster}, nil
	}

	dirCluster := fs.rootCluster
	var cur shortEntry
	for i := 0; i < parts.n; i++ {
		e, ok, err := fs.findInDir(dirCluster, parts.parts[i])
		if err != nil {
			return shortEntry{}, err
		}
		if !ok {
			return shortEntry{}, kerr(errors.ErrNotFound)
		}
		cur = e
		if i != parts.n-1 {
			if !e.isDirectory() {
				return shortEntry{}, kerr(errors.ErrNotDirectory)
			}
			dirCluster = e.cluster
		}
	}
	return cur, nil
}

func (fs *FS) lookupParentAndName(path string) (uint32, string, *kernel.Error) {
	parts := splitPath(path)
	if parts.n == 0 {
		return 0, "", kerr(errors.ErrInvalidPath)
	}
	dirCluster := fs.rootCluster
	for i := 0; i < parts.n-1; i++ {
		e, ok, err := fs.findInDir(dirCluster, parts.parts[i])
		if err != nil {
			return 0, "", err
		}
		if !ok {
			return 0, "", kerr(errors.ErrNotFound)
		}
		if !e.isDirectory() {
			return 0, "", kerr(errors.ErrNotDirectory)
		}
		dirCluster = e.cluster
	}
	return dirCluster, parts.parts[parts.n-1], nil
}

// writeDirEntry persists e's cluster/size fields back to its on-disk slot.
func (fs *FS) writeDirEntry(e shortEntry) *kernel.Error {
	if err := fs.readCluster(e.locCluster); err != nil {
		return err
	}
	raw := fs.clusterBuf[e.locOffset : e.locOffset+dirEntrySize]
	binary.LittleEndian.PutUint16(raw[20:22], uint16(e.cluster>>16))
	binary.LittleEndian.PutUint16(raw[26:28], uint16(e.cluster))
	binary.LittleEndian.PutUint32(raw[28:32], e.size)
	return fs.writeCluster(e.locCluster)
}

// MaxOpenHandles bounds the per-filesystem open-handle table; it mirrors
// vfs.MaxOpenFiles since every fd the VFS hands out threads through exactly
// one of these slots.
const MaxOpenHandles = 64

// openHandle is one entry of the open-handle table; Open/Opendir return its
// index as a vfs.Handle instead of a pointer, so opening a file never asks
// the Go allocator for anything.
type openHandle struct {
	used   bool
	entry  shortEntry
	offset uint64

	isDir   bool
	dirIter uint32 // cluster currently being scanned by Readdir
	dirOff  uint32 // byte offset within dirIter
}

func (fs *FS) allocHandle() vfs.Handle {
	for i := range fs.handles {
		if !fs.handles[i].used {
			return vfs.Handle(i)
		}
	}
	return vfs.NoHandle
}

// nameToShortName copies at most len(sn.buf) (12) leading bytes of s into a
// shortName without going through a string concatenation.
func nameToShortName(s string) shortName {
	var sn shortName
	n := len(s)
	if n > len(sn.buf) {
		n = len(sn.buf)
	}
	copy(sn.buf[:], s[:n])
	sn.n = uint8(n)
	return sn
}

func splitBase(name string) (base, ext string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

// makeShortName synthesizes an 8.3 short name for newName inside dirCluster,
// uppercased and space-padded, suffixing ~1, ~2, ... on collision, per
// spec.md §4.7.1's Create algorithm. The base+tag join is done byte-by-byte
// into the fixed on-disk layout rather than via string concatenation.
func (fs *FS) makeShortName(dirCluster uint32, newName string) ([11]byte, *kernel.Error) {
	base, ext := splitBase(upper(newName))
	if len(base) > 8 {
		base = base[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}

	build := func(baseLen int, tagLen int, tag [8]byte) [11]byte {
		var raw [11]byte
		for i := range raw {
			raw[i] = ' '
		}
		copy(raw[0:baseLen], base[:baseLen])
		copy(raw[baseLen:baseLen+tagLen], tag[:tagLen])
		copy(raw[8:11], ext)
		return raw
	}

	for suffix := 0; ; suffix++ {
		var name [11]byte
		var candidate shortName

		if suffix == 0 {
			name = build(len(base), 0, [8]byte{})
			candidate = decodeShortName(name[:])
		} else {
			var tag [8]byte
			tag[0] = '~'
			tagLen := 1 + itoaInto(tag[1:], suffix)
			baseLen := len(base)
			if baseLen+tagLen > 8 {
				baseLen = 8 - tagLen
			}
			name = build(baseLen, tagLen, tag)
			candidate = decodeShortName(name[:])
		}

		found, err := fs.findShortNameInDir(dirCluster, candidate)
		if err != nil {
			return [11]byte{}, err
		}
		if !found {
			return name, nil
		}
	}
}

// itoaInto writes the decimal digits of n into buf and returns the number of
// bytes written; it never allocates.
func itoaInto(buf []byte, n int) int {
	if n == 0 {
		buf[0] = '0'
		return 1
	}
	var digits [8]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return copy(buf, digits[i:])
}

// allocDirSlot scans dirCluster's chain for a free 32-byte record (first
// byte 0x00 or 0xE5), extending the chain by one cluster if none is found.
func (fs *FS) allocDirSlot(dirCluster uint32) (uint32, uint32, *kernel.Error) {
	c := dirCluster
	for {
		if err := fs.readCluster(c); err != nil {
			return 0, 0, err
		}
		entriesPerCluster := fs.clusterSize() / dirEntrySize
		for i := uint32(0); i < entriesPerCluster; i++ {
			off := i * dirEntrySize
			if fs.clusterBuf[off] == 0x00 || fs.clusterBuf[off] == 0xE5 {
				return c, off, nil
			}
		}
		next, err := fs.nextCluster(c)
		if err != nil {
			return 0, 0, err
		}
		if isEndOfChain(next) {
			newC, err := fs.appendCluster(c)
			if err != nil {
				return 0, 0, err
			}
			if err := fs.zeroCluster(newC); err != nil {
				return 0, 0, err
			}
			c = newC
			continue
		}
		c = next
	}
}

func (fs *FS) zeroCluster(c uint32) *kernel.Error {
	size := fs.clusterSize()
	for i := uint32(0); i < size; i++ {
		fs.clusterBuf[i] = 0
	}
	return fs.writeCluster(c)
}

func (fs *FS) writeNewDirEntry(dirCluster uint32, rawName [11]byte, attr uint8, cluster, size uint32) (uint32, uint32, *kernel.Error) {
	slotCluster, slotOff, err := fs.allocDirSlot(dirCluster)
	if err != nil {
		return 0, 0, err
	}
	if err := fs.readCluster(slotCluster); err != nil {
		return 0, 0, err
	}
	raw := fs.clusterBuf[slotOff : slotOff+dirEntrySize]
	for i := range raw {
		raw[i] = 0
	}
	copy(raw[0:11], rawName[:])
	raw[11] = attr
	binary.LittleEndian.PutUint16(raw[20:22], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(raw[26:28], uint16(cluster))
	binary.LittleEndian.PutUint32(raw[28:32], size)
	if err := fs.writeCluster(slotCluster); err != nil {
		return 0, 0, err
	}
	return slotCluster, slotOff, nil
}

// Open implements vfs.Filesystem.
func (fs *FS) Open(relPath string, mode vfs.OpenMode) (vfs.Handle, *kernel.Error) {
	e, err := fs.lookup(relPath)
	if err == nil {
		if e.isDirectory() {
			return vfs.NoHandle, kerr(errors.ErrIsDirectory)
		}
		if mode&vfs.Truncate != 0 {
			if e.cluster != 0 {
				if err := fs.freeChain(e.cluster); err != nil {
					return vfs.NoHandle, err
				}
			}
			e.cluster = 0
			e.size = 0
			if err := fs.writeDirEntry(e); err != nil {
				return vfs.NoHandle, err
			}
		}
		h := fs.allocHandle()
		if h == vfs.NoHandle {
			return vfs.NoHandle, kerr(errors.ErrTableFull)
		}
		fs.handles[h] = openHandle{used: true, entry: e}
		if mode&vfs.Append != 0 {
			fs.handles[h].offset = uint64(e.size)
		}
		return h, nil
	}
	if err.Message != string(errors.ErrNotFound) || mode&vfs.Create == 0 {
		return vfs.NoHandle, err
	}

	dirCluster, name, perr := fs.lookupParentAndName(relPath)
	if perr != nil {
		return vfs.NoHandle, perr
	}
	rawShortName, perr := fs.makeShortName(dirCluster, name)
	if perr != nil {
		return vfs.NoHandle, perr
	}
	slotCluster, slotOff, perr := fs.writeNewDirEntry(dirCluster, rawShortName, attrArchive, 0, 0)
	if perr != nil {
		return vfs.NoHandle, perr
	}
	h := fs.allocHandle()
	if h == vfs.NoHandle {
		return vfs.NoHandle, kerr(errors.ErrTableFull)
	}
	fs.handles[h] = openHandle{used: true, entry: shortEntry{
		name:       nameToShortName(name),
		cluster:    0,
		size:       0,
		locCluster: slotCluster,
		locOffset:  slotOff,
	}}
	return h, nil
}

func (fs *FS) Close(h vfs.Handle) { fs.handles[h] = openHandle{} }

func (fs *FS) Read(h vfs.Handle, buf []byte) (int, *kernel.Error) {
	hd := &fs.handles[h]
	e := hd.entry
	if hd.offset >= uint64(e.size) || e.cluster == 0 {
		return 0, nil
	}

	want := len(buf)
	if remain := uint64(e.size) - hd.offset; uint64(want) > remain {
		want = int(remain)
	}

	clusterBytes := fs.clusterSize()
	cluster := e.cluster
	skip := hd.offset
	for skip >= uint64(clusterBytes) {
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if isEndOfChain(next) {
			return 0, nil
		}
		cluster = next
		skip -= uint64(clusterBytes)
	}

	total := 0
	for total < want {
		if err := fs.readCluster(cluster); err != nil {
			return total, err
		}
		n := copy(buf[total:want], fs.clusterBuf[skip:clusterBytes])
		total += n
		skip = 0

		if total < want {
			next, err := fs.nextCluster(cluster)
			if err != nil {
				return total, err
			}
			if isEndOfChain(next) {
				break
			}
			cluster = next
		}
	}

	hd.offset += uint64(total)
	return total, nil
}

func (fs *FS) Write(h vfs.Handle, buf []byte) (int, *kernel.Error) {
	hd := &fs.handles[h]
	e := &hd.entry

	if e.cluster == 0 {
		c, err := fs.allocCluster()
		if err != nil {
			return 0, err
		}
		if err := fs.zeroCluster(c); err != nil {
			return 0, err
		}
		e.cluster = c
	}

	clusterBytes := fs.clusterSize()
	cluster := e.cluster
	skip := hd.offset
	for skip >= uint64(clusterBytes) {
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if isEndOfChain(next) {
			next, err = fs.appendCluster(cluster)
			if err != nil {
				return 0, err
			}
			if err := fs.zeroCluster(next); err != nil {
				return 0, err
			}
		}
		cluster = next
		skip -= uint64(clusterBytes)
	}

	total := 0
	for total < len(buf) {
		if err := fs.readCluster(cluster); err != nil {
			return total, err
		}
		n := copy(fs.clusterBuf[skip:clusterBytes], buf[total:])
		if err := fs.writeCluster(cluster); err != nil {
			return total, err
		}
		total += n
		skip = 0

		if total < len(buf) {
			next, err := fs.nextCluster(cluster)
			if err != nil {
				return total, err
			}
			if isEndOfChain(next) {
				next, err = fs.appendCluster(cluster)
				if err != nil {
					return total, err
				}
				if err := fs.zeroCluster(next); err != nil {
					return total, err
				}
			}
			cluster = next
		}
	}

	hd.offset += uint64(total)
	if hd.offset > uint64(e.size) {
		e.size = uint32(hd.offset)
	}
	return total, fs.writeDirEntry(*e)
}

func (fs *FS) Seek(h vfs.Handle, absOffset uint64) *kernel.Error {
	fs.handles[h].offset = absOffset
	return nil
}

func (fs *FS) Opendir(relPath string) (vfs.Handle, *kernel.Error) {
	e, err := fs.lookup(relPath)
	if err != nil {
		return vfs.NoHandle, err
	}
	if !e.isDirectory() {
		return vfs.NoHandle, kerr(errors.ErrNotDirectory)
	}
	h := fs.allocHandle()
	if h == vfs.NoHandle {
		return vfs.NoHandle, kerr(errors.ErrTableFull)
	}
	fs.handles[h] = openHandle{used: true, entry: e, isDir: true, dirIter: e.cluster}
	return h, nil
}

func (fs *FS) Readdir(h vfs.Handle) (vfs.DirEntry, *kernel.Error) {
	hd := &fs.handles[h]
	if hd.dirIter == 0 {
		return vfs.DirEntry{}, kerr(errors.ErrNotFound)
	}

	entriesPerCluster := fs.clusterSize() / dirEntrySize
	for {
		if err := fs.readCluster(hd.dirIter); err != nil {
			return vfs.DirEntry{}, err
		}

		for hd.dirOff < entriesPerCluster*dirEntrySize {
			off := hd.dirOff
			hd.dirOff += dirEntrySize
			raw := fs.clusterBuf[off : off+dirEntrySize]

			if raw[0] == 0x00 {
				hd.dirIter = 0
				return vfs.DirEntry{}, kerr(errors.ErrNotFound)
			}
			if raw[0] == 0xE5 {
				continue
			}
			attr := raw[11]
			if attr == attrLongName || attr&attrVolumeID != 0 {
				continue
			}
			name := decodeShortName(raw[0:11])
			if name.isDot() || name.isDotDot() {
				continue
			}
			size := binary.LittleEndian.Uint32(raw[28:32])
			return vfs.DirEntry{Name: name.String(), Size: uint64(size), IsDirectory: attr&attrDirectory != 0}, nil
		}

		next, err := fs.nextCluster(hd.dirIter)
		if err != nil {
			return vfs.DirEntry{}, err
		}
		if isEndOfChain(next) {
			hd.dirIter = 0
			return vfs.DirEntry{}, kerr(errors.ErrNotFound)
		}
		hd.dirIter = next
		hd.dirOff = 0
	}
}

func (fs *FS) Closedir(h vfs.Handle) { fs.handles[h] = openHandle{} }

func (fs *FS) Stat(relPath string) (vfs.Stat, *kernel.Error) {
	e, err := fs.lookup(relPath)
	if err != nil {
		return vfs.Stat{}, err
	}
	return vfs.Stat{Size: uint64(e.size), IsDirectory: e.isDirectory()}, nil
}

// Mkdir creates relPath as a directory pre-initialized with "." and ".."
// entries pointing at itself and its parent, per spec.md §4.7.1's Create
// algorithm.
func (fs *FS) Mkdir(relPath string) *kernel.Error {
	if _, err := fs.lookup(relPath); err == nil {
		return kerr(errors.ErrAlreadyExists)
	}

	parentCluster, name, err := fs.lookupParentAndName(relPath)
	if err != nil {
		return err
	}

	newCluster, err := fs.allocCluster()
	if err != nil {
		return err
	}
	if err := fs.zeroCluster(newCluster); err != nil {
		return err
	}

	dotName := [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	dotdotName := [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

	if err := fs.writeDirEntryRaw(newCluster, 0, dotName, attrDirectory, newCluster); err != nil {
		return err
	}
	if err := fs.writeDirEntryRaw(newCluster, dirEntrySize, dotdotName, attrDirectory, parentCluster); err != nil {
		return err
	}

	rawShortName, err := fs.makeShortName(parentCluster, name)
	if err != nil {
		return err
	}
	_, _, err = fs.writeNewDirEntry(parentCluster, rawShortName, attrDirectory, newCluster, 0)
	return err
}

func (fs *FS) writeDirEntryRaw(cluster uint32, offset uint32, rawName [11]byte, attr uint8, targetCluster uint32) *kernel.Error {
	if err := fs.readCluster(cluster); err != nil {
		return err
	}
	raw := fs.clusterBuf[offset : offset+dirEntrySize]
	copy(raw[0:11], rawName[:])
	raw[11] = attr
	binary.LittleEndian.PutUint16(raw[20:22], uint16(targetCluster>>16))
	binary.LittleEndian.PutUint16(raw[26:28], uint16(targetCluster))
	return fs.writeCluster(cluster)
}

func (fs *FS) markDeleted(e shortEntry) *kernel.Error {
	if err := fs.readCluster(e.locCluster); err != nil {
		return err
	}
	fs.clusterBuf[e.locOffset] = 0xE5
	return fs.writeCluster(e.locCluster)
}

func (fs *FS) Unlink(relPath string) *kernel.Error {
	e, err := fs.lookup(relPath)
	if err != nil {
		return err
	}
	if e.isDirectory() {
		return kerr(errors.ErrIsDirectory)
	}
	if e.cluster != 0 {
		if err := fs.freeChain(e.cluster); err != nil {
			return err
		}
	}
	return fs.markDeleted(e)
}

func (fs *FS) Rmdir(relPath string) *kernel.Error {
	e, err := fs.lookup(relPath)
	if err != nil {
		return err
	}
	if !e.isDirectory() {
		return kerr(errors.ErrNotDirectory)
	}

	empty := true
	err = fs.walkDir(e.cluster, func(child shortEntry) bool {
		if !child.name.isDot() && !child.name.isDotDot() {
			empty = false
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if !empty {
		return kerr(errors.ErrDirectoryNotEmpty)
	}

	if err := fs.freeChain(e.cluster); err != nil {
		return err
	}
	return fs.markDeleted(e)
}

func (fs *FS) Rename(oldPath, newPath string) *kernel.Error {
	e, err := fs.lookup(oldPath)
	if err != nil {
		return err
	}
	if _, err := fs.lookup(newPath); err == nil {
		return kerr(errors.ErrAlreadyExists)
	}

	newDirCluster, newName, err := fs.lookupParentAndName(newPath)
	if err != nil {
		return err
	}
	rawShortName, err := fs.makeShortName(newDirCluster, newName)
	if err != nil {
		return err
	}
	if _, _, err := fs.writeNewDirEntry(newDirCluster, rawShortName, e.attr, e.cluster, e.size); err != nil {
		return err
	}
	return fs.markDeleted(e)
}

func (fs *FS) IsDirectory(relPath string) bool {
	e, err := fs.lookup(relPath)
	return err == nil && e.isDirectory()
}

func (fs *FS) Exists(relPath string) bool {
	_, err := fs.lookup(relPath)
	return err == nil
}

// VolumeLabel returns the cached volume label captured at Mount.
func (fs *FS) VolumeLabel() string { return fs.volumeLabel }
