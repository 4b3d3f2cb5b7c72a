package diskbloom

import (
	"math/bits"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapBackend stores bits in a file mapped into the process address space
// with mmap(2), adapted from the teacher's z.MmapFile/OpenMmapFile
// (z/file.go, z/mmap_linux.go): same open-stat-truncate-mmap sequence, same
// Msync-backed Flush, narrowed to a fixed-size bit array instead of a
// growable slab arena.
type MmapBackend struct {
	fd   *os.File
	data []byte
}

// OpenMmap opens or creates path and maps enough bytes to hold nBits bits.
// An existing file shorter than the required size is truncated up; a
// longer file is mapped at its existing size.
func OpenMmap(path string, nBits uint64) (*MmapBackend, error) {
	want := int64((nBits + 7) / 8)

	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "diskbloom: opening %s", path)
	}

	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "diskbloom: stat %s", path)
	}

	size := fi.Size()
	if size < want {
		if err := fd.Truncate(want); err != nil {
			fd.Close()
			return nil, errors.Wrapf(err, "diskbloom: truncating %s to %d", path, want)
		}
		size = want
	}

	data, err := unix.Mmap(int(fd.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "diskbloom: mmap %s", path)
	}

	return &MmapBackend{fd: fd, data: data}, nil
}

func (m *MmapBackend) GetBit(i uint64) bool {
	return m.data[i/8]&(1<<(i%8)) != 0
}

func (m *MmapBackend) SetBit(i uint64) {
	m.data[i/8] |= 1 << (i % 8)
}

func (m *MmapBackend) ClearBit(i uint64) {
	m.data[i/8] &^= 1 << (i % 8)
}

func (m *MmapBackend) Popcount() uint64 {
	var n uint64
	for _, b := range m.data {
		n += uint64(bits.OnesCount8(b))
	}
	return n
}

// Flush forces dirty pages to disk via msync, mirroring z.MmapFile.Sync.
func (m *MmapBackend) Flush() error {
	return errors.Wrap(unix.Msync(m.data, unix.MS_SYNC), "diskbloom: msync")
}

// Close unmaps the file and closes the descriptor without truncating it,
// leaving the backing file intact for a later OpenMmap.
func (m *MmapBackend) Close() error {
	if err := unix.Munmap(m.data); err != nil {
		return errors.Wrap(err, "diskbloom: munmap")
	}
	m.data = nil
	return m.fd.Close()
}
