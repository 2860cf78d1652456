package impl

import (
	"encoding/binary"
	"errors"
	"math/bits"
	"sync/atomic"

	interf "github.com/extremscorner/libntfs/interfaces"
	"github.com/oxtoacart/bpool"
)

// interface check: interf.Cache
var _ interf.Cache = (*_Cache)(nil)

// cacheFree marks a page slot that covers no sectors.
const cacheFree = ^uint64(0)

// accessCounter is shared by all caches of the process. The LRU ordering
// only has to hold locally within one cache over short windows, so the
// 32 bit wrap is harmless.
var accessCounter uint32

func accessTime() uint32 {
	return atomic.AddUint32(&accessCounter, 1)
}

// _CacheEntry is one page slot: a run of count sectors starting at sector
// (aligned to the page size), or free. Bit k of dirty set means sector
// sector+k differs from the device.
type _CacheEntry struct {
	sector     uint64 // first sector of the page, or cacheFree
	count      uint64 // valid sectors in the page (the last page of a partition may be short)
	lastAccess uint32 // LRU tick, 0 for free slots
	dirty      uint64 // per-sector dirty bitmap
	data       []byte // page buffer, sectorsPerPage*bytesPerSector bytes, interf.BufferAlign aligned
}

// @see interf.Cache
//
// _Cache buffers device sectors in page slots between the NTFS layers and
// a BlockDev. Replacement is least-recently-used with free slots always
// preferred, which distributes sectors evenly over the pages: if less than
// numberOfPages pages are used at once, they should all eventually remain
// in the cache.
type _Cache struct {
	dev            interf.BlockDev
	endOfPartition uint64
	entries        []_CacheEntry
	sectorsPerPage uint64
	bytesPerSector uint64
	pool           *bpool.BytePool // the byte pool avoids allocating memory
	stat           *_CacheStat     // collects statistical data about internal processes
}

// NewCache returns the default implementation of interf.Cache.
// numberOfPages is raised to interf.MinPageCount and sectorsPerPage is
// clamped to [interf.MinSectorsPerPage, interf.MaxSectorsPerPage].
// Zero page parameters are rejected before clamping.
func NewCache(numberOfPages, sectorsPerPage uint, dev interf.BlockDev, endOfPartition uint64, bytesPerSector uint, debugLvl uint8) (interf.Cache, error) {
	// check input
	if numberOfPages == 0 || sectorsPerPage == 0 {
		return nil, errors.New("can't create new Cache with numberOfPages=0 or sectorsPerPage=0")
	}
	if dev == nil || bytesPerSector == 0 {
		return nil, errors.New("can't create new Cache with dev=nil or bytesPerSector=0")
	}

	if numberOfPages < interf.MinPageCount {
		numberOfPages = interf.MinPageCount
	}

	if sectorsPerPage < interf.MinSectorsPerPage {
		sectorsPerPage = interf.MinSectorsPerPage
	} else if sectorsPerPage > interf.MaxSectorsPerPage {
		sectorsPerPage = interf.MaxSectorsPerPage
	}

	// cache statistic
	stat := &_CacheStat{
		debugLvl:    debugLvl,
		packageName: "impl",
	}

	// page slots with aligned buffers
	entries := make([]_CacheEntry, numberOfPages)
	for i := range entries {
		entries[i].sector = cacheFree
		entries[i].data = AlignedBuffer(uint64(sectorsPerPage) * uint64(bytesPerSector))
	}

	return &_Cache{
		dev:            dev,
		endOfPartition: endOfPartition,
		entries:        entries,
		sectorsPerPage: uint64(sectorsPerPage),
		bytesPerSector: uint64(bytesPerSector),
		pool:           bpool.NewBytePool(25, int(bytesPerSector)),
		stat:           stat,
	}, nil
}

//-----------  IMPLEMENTATION:  @see interf.Cache  -------------------------------------------------------------------//

// @see interf.Cache
func (c *_Cache) ReadSectors(sector, numSectors uint64, buffer []byte) bool {
	dst := buffer

	for numSectors > 0 {
		// bypass: aligned whole-page runs in front of any cached page go
		// straight to the device
		if Aligned(dst) && sector%c.sectorsPerPage == 0 {
			var secsToRead uint64

			entry := c.findPage(sector, numSectors)
			if entry == nil {
				secsToRead = (numSectors / c.sectorsPerPage) * c.sectorsPerPage // whole pages only, never a partial tail
			} else if entry.sector > sector {
				secsToRead = entry.sector - sector
			}

			if secsToRead > 0 {
				if !c.dev.ReadSectors(sector, secsToRead, dst[:secsToRead*c.bytesPerSector]) {
					c.stat.DevErr("read", sector, secsToRead) // DEBUG
					return false
				}
				c.stat.BypassRead(sector, secsToRead) // DEBUG

				dst = dst[secsToRead*c.bytesPerSector:]
				sector += secsToRead
				numSectors -= secsToRead
				continue
			}
		}

		// cached path
		entry := c.getPage(sector, numSectors, false)
		if entry == nil {
			return false
		}

		local := sector - entry.sector
		secsToRead := entry.count - local
		if secsToRead > numSectors {
			secsToRead = numSectors
		}

		copy(dst, entry.data[local*c.bytesPerSector:(local+secsToRead)*c.bytesPerSector])

		dst = dst[secsToRead*c.bytesPerSector:]
		sector += secsToRead
		numSectors -= secsToRead
	}

	return true
}

// @see interf.Cache
func (c *_Cache) WriteSectors(sector, numSectors uint64, buffer []byte) bool {
	src := buffer

	for numSectors > 0 {
		// bypass: aligned whole-page runs in front of any cached page go
		// straight to the device
		if Aligned(src) && sector%c.sectorsPerPage == 0 {
			var secsToWrite uint64

			entry := c.findPage(sector, numSectors)
			if entry == nil {
				secsToWrite = (numSectors / c.sectorsPerPage) * c.sectorsPerPage // whole pages only, never a partial tail
			} else if entry.sector > sector {
				secsToWrite = entry.sector - sector
			}

			if secsToWrite > 0 {
				if !c.dev.WriteSectors(sector, secsToWrite, src[:secsToWrite*c.bytesPerSector]) {
					c.stat.DevErr("write", sector, secsToWrite) // DEBUG
					return false
				}
				c.stat.BypassWrite(sector, secsToWrite) // DEBUG

				src = src[secsToWrite*c.bytesPerSector:]
				sector += secsToWrite
				numSectors -= secsToWrite
				continue
			}
		}

		// cached path: sectors fully overwritten here are not loaded first
		entry := c.getPage(sector, numSectors, true)
		if entry == nil {
			return false
		}

		local := sector - entry.sector
		secsToWrite := entry.count - local
		if secsToWrite > numSectors {
			secsToWrite = numSectors
		}

		copy(entry.data[local*c.bytesPerSector:(local+secsToWrite)*c.bytesPerSector], src)

		src = src[secsToWrite*c.bytesPerSector:]
		sector += secsToWrite
		numSectors -= secsToWrite

		entry.dirty |= ((uint64(1) << secsToWrite) - 1) << local
	}

	return true
}

// @see interf.Cache
func (c *_Cache) ReadPartialSector(buffer []byte, sector uint64, offset, size uint) bool {
	if uint64(offset)+uint64(size) > c.bytesPerSector {
		return false
	}

	entry := c.getPage(sector, 1, false)
	if entry == nil {
		return false
	}

	local := sector - entry.sector
	start := local*c.bytesPerSector + uint64(offset)
	copy(buffer, entry.data[start:start+uint64(size)])

	c.stat.PartialRead()
	return true
}

// @see interf.Cache
func (c *_Cache) WritePartialSector(buffer []byte, sector uint64, offset, size uint) bool {
	if uint64(offset)+uint64(size) > c.bytesPerSector {
		return false
	}

	// the page must be fully valid because the surrounding bytes are preserved
	entry := c.getPage(sector, 1, false)
	if entry == nil {
		return false
	}

	local := sector - entry.sector
	start := local*c.bytesPerSector + uint64(offset)
	copy(entry.data[start:start+uint64(size)], buffer[:size])

	entry.dirty |= uint64(1) << local

	c.stat.PartialWrite()
	return true
}

// @see interf.Cache
func (c *_Cache) EraseWritePartialSector(buffer []byte, sector uint64, offset, size uint) bool {
	if uint64(offset)+uint64(size) > c.bytesPerSector {
		return false
	}

	// the sector is fully overwritten, no need to load it first
	entry := c.getPage(sector, 1, true)
	if entry == nil {
		return false
	}

	local := sector - entry.sector
	sec := entry.data[local*c.bytesPerSector : (local+1)*c.bytesPerSector]
	clear(sec)
	copy(sec[offset:], buffer[:size])

	entry.dirty |= uint64(1) << local

	c.stat.PartialWrite()
	return true
}

// @see interf.Cache
func (c *_Cache) ReadLittleEndianValue(sector uint64, offset, numBytes uint) (uint32, bool) {
	// buffer from pool
	buf := c.pool.Get()
	defer c.pool.Put(buf)

	if !c.ReadPartialSector(buf, sector, offset, numBytes) {
		return 0, false
	}

	switch numBytes {
	case 1:
		return uint32(buf[0]), true
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf)), true
	case 4:
		return binary.LittleEndian.Uint32(buf), true
	default:
		return 0, false
	}
}

// @see interf.Cache
func (c *_Cache) WriteLittleEndianValue(value uint32, sector uint64, offset, size uint) bool {
	var buf [4]byte

	switch size {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf[:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf[:], value)
	default:
		return false
	}

	return c.WritePartialSector(buf[:size], sector, offset, size)
}

// @see interf.Cache
func (c *_Cache) Flush() bool {
	for i := range c.entries {
		entry := &c.entries[i]

		if entry.dirty != 0 {
			if !c.writeback(entry) {
				return false
			}
		}
	}

	c.stat.Flush() // DEBUG
	return true
}

// @see interf.Cache
func (c *_Cache) Invalidate() {
	// a flush failure must not stop the invalidation: the caller chose to
	// discard the cache state
	_ = c.Flush()

	for i := range c.entries {
		c.entries[i].sector = cacheFree
		c.entries[i].count = 0
		c.entries[i].lastAccess = 0
		c.entries[i].dirty = 0
	}

	c.stat.Invalidate() // DEBUG
}

// @see interf.Cache
func (c *_Cache) Pool() *bpool.BytePool {
	return c.pool
}

// @see interf.Cache
func (c *_Cache) Stat() map[string]uint64 {
	return c.stat.Stat()
}

// @see interf.Cache
func (c *_Cache) Close() error {
	_ = c.Flush()

	// free memory in reverse allocation order
	for i := range c.entries {
		c.entries[i].sector = cacheFree
		c.entries[i].count = 0
		c.entries[i].lastAccess = 0
		c.entries[i].dirty = 0
		c.entries[i].data = nil
	}
	c.entries = nil

	c.stat.PrintStatAfterClose() // DEBUG
	return nil
}

//-----  HELPER  -----------------------------------------------------------------------------------------------------//

// getPage returns the page slot covering sector, loading it on a miss.
//
// On a miss the least-recently-used slot is rebased (free slots win over
// any used slot, ties go to the lowest index). A dirty victim is written
// back first; if that write fails the slot is left intact with its dirty
// state and nil is returned so the caller may retry later.
//
// With write=true, sectors of the new page that the caller is about to
// overwrite anyway (numSectors from the target sector onward) are elided
// from the populate read. If the populate read fails the slot is freed.
//
// At most one device read per miss and one device write per eviction.
func (c *_Cache) getPage(sector, numSectors uint64, write bool) *_CacheEntry {
	entries := c.entries
	sectorsPerPage := c.sectorsPerPage

	foundFree := false
	oldUsed := 0
	oldAccess := ^uint32(0)

	for i := range entries {
		if sector >= entries[i].sector && sector < entries[i].sector+entries[i].count {
			entries[i].lastAccess = accessTime()
			c.stat.CacheHit(sector) // DEBUG
			return &entries[i]
		}

		if !foundFree && (entries[i].sector == cacheFree || entries[i].lastAccess < oldAccess) {
			if entries[i].sector == cacheFree {
				foundFree = true
			}
			oldUsed = i
			oldAccess = entries[i].lastAccess
		}
	}

	c.stat.CacheMis(sector) // DEBUG
	entry := &entries[oldUsed]

	if !foundFree {
		c.stat.CacheEvict(entry.sector, entry.dirty) // DEBUG
		if entry.dirty != 0 {
			if !c.writeback(entry) {
				return nil
			}
		}
	}

	entry.sector = (sector / sectorsPerPage) * sectorsPerPage // align base sector to page size
	sector -= entry.sector
	entry.count = c.endOfPartition - entry.sector
	if entry.count > sectorsPerPage {
		entry.count = sectorsPerPage
	} else {
		sectorsPerPage = entry.count // tail page
	}
	if numSectors > sectorsPerPage-sector {
		numSectors = sectorsPerPage - sector
	}

	var sec uint64
	secsToRead := sectorsPerPage

	if write {
		if sector == sec && numSectors == secsToRead {
			// full overwrite, no load at all
			entry.lastAccess = accessTime()
			return entry
		} else if sector == sec {
			sec += numSectors
			secsToRead -= numSectors
		} else if sector+numSectors == sec+secsToRead {
			secsToRead -= numSectors
		}
	}

	off := sec * c.bytesPerSector
	if !c.dev.ReadSectors(entry.sector+sec, secsToRead, entry.data[off:off+secsToRead*c.bytesPerSector]) {
		c.stat.DevErr("read", entry.sector+sec, secsToRead) // DEBUG
		entry.sector = cacheFree
		entry.count = 0
		entry.lastAccess = 0
		entry.dirty = 0
		return nil
	}

	entry.lastAccess = accessTime()
	return entry
}

// findPage returns the cached page with the lowest base sector that
// intersects [sector, sector+count), or nil. The bulk bypass uses it to
// decide how many sectors may go straight to the device.
func (c *_Cache) findPage(sector, count uint64) *_CacheEntry {
	var entry *_CacheEntry
	lowest := cacheFree

	for i := range c.entries {
		if c.entries[i].sector == cacheFree {
			continue
		}

		var intersect bool
		if sector > c.entries[i].sector {
			intersect = sector-c.entries[i].sector < c.entries[i].count
		} else {
			intersect = c.entries[i].sector-sector < count
		}

		if intersect && c.entries[i].sector < lowest {
			lowest = c.entries[i].sector
			entry = &c.entries[i]
		}
	}

	return entry
}

// writeback issues one device write covering the contiguous span from the
// first to the last dirty sector of the slot (clean sectors in between are
// written too, long transfers beat many short ones) and clears the bitmap.
// On failure the bitmap is kept so the write can be retried.
func (c *_Cache) writeback(entry *_CacheEntry) bool {
	first := uint64(bits.TrailingZeros64(entry.dirty))
	n := uint64(bits.Len64(entry.dirty)) - first

	off := first * c.bytesPerSector
	if !c.dev.WriteSectors(entry.sector+first, n, entry.data[off:off+n*c.bytesPerSector]) {
		c.stat.DevErr("write", entry.sector+first, n) // DEBUG
		return false
	}
	c.stat.CacheWriteback(entry.sector+first, n) // DEBUG

	entry.dirty = 0
	return true
}
