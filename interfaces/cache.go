package interf

import (
	"io"

	"github.com/oxtoacart/bpool"
)

// Cache buffers device sectors in page slots between the NTFS layers and a
// BlockDev. It absorbs repeated small reads, coalesces writes per sector
// and bypasses itself for aligned bulk transfers.
//
// The cache is NOT internally synchronised: the enclosing volume serialises
// every call behind its own lock. All operations that miss may issue
// synchronous device I/O (one write for the evicted page, one read for the
// new page).
//
// All operations return false on device failure or violated precondition
// and never retry. A failed page load frees the slot; a failed writeback
// keeps the dirty state so a later Flush can try again.
type Cache interface {

	// ReadSectors reads numSectors sectors starting at sector into buffer.
	// If buffer is BufferAlign aligned and sector starts a page, whole
	// pages not overlapping any cached page are read from the device
	// directly.
	ReadSectors(sector, numSectors uint64, buffer []byte) bool

	// WriteSectors writes numSectors sectors starting at sector from
	// buffer. Aligned whole-page runs bypass the cache like ReadSectors;
	// everything else lands in a page slot and is marked dirty per sector.
	// Pages fully overwritten by the caller are not loaded first.
	WriteSectors(sector, numSectors uint64, buffer []byte) bool

	// ReadPartialSector reads size bytes at byte offset within the given
	// sector into buffer. offset+size must not exceed the sector size.
	ReadPartialSector(buffer []byte, sector uint64, offset, size uint) bool

	// WritePartialSector writes size bytes at byte offset within the given
	// sector. The surrounding bytes of the sector are preserved.
	// offset+size must not exceed the sector size.
	WritePartialSector(buffer []byte, sector uint64, offset, size uint) bool

	// EraseWritePartialSector zeroes the whole sector, then writes size
	// bytes at byte offset. offset+size must not exceed the sector size.
	EraseWritePartialSector(buffer []byte, sector uint64, offset, size uint) bool

	// ReadLittleEndianValue reads a little-endian value of numBytes bytes
	// (1, 2 or 4) at byte offset within the given sector.
	ReadLittleEndianValue(sector uint64, offset, numBytes uint) (value uint32, ok bool)

	// WriteLittleEndianValue writes value as a little-endian value of size
	// bytes (1, 2 or 4) at byte offset within the given sector.
	WriteLittleEndianValue(value uint32, sector uint64, offset, size uint) bool

	// Flush writes the dirty sectors of every page to the device and
	// clears the dirty state. One device write per dirty page, covering
	// the contiguous span from the first to the last dirty sector.
	// Stops at the first device failure; later pages stay dirty.
	Flush() bool

	// Invalidate flushes, then frees every page slot. A failed flush does
	// not stop the invalidation (use Flush directly to keep dirty data).
	Invalidate()

	// Pool returns a byte pool of sector sized buffers. This means that
	// small scratch buffers can be reused and the allocation is reduced.
	//
	// Example of use:
	//   buf := c.Pool().Get()
	//   defer c.Pool().Put(buf)
	Pool() *bpool.BytePool

	// Stat returns the number of times internal processes have been run
	// since initialization. This method is relevant for testing and
	// debugging purposes. The KEY is the internal process, the VALUE is
	// the count.
	Stat() map[string]uint64

	// Close flushes (failures are ignored) and releases the page buffers.
	// Flushing with error handling is the caller's responsibility via
	// Flush or Invalidate. The cache must not be used after Close.
	io.Closer
}
