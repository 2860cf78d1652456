package interf

import "io"

// BlockDev is the capability the cache needs from the underlying block
// device. Calls are synchronous and atomic at device granularity; there is
// no cancellation. Sector numbers are absolute device sectors.
type BlockDev interface {

	// ReadSectors reads count sectors starting at sector start into dst.
	// len(dst) must be count * bytes-per-sector of the device.
	// Returns false on any device error.
	ReadSectors(start, count uint64, dst []byte) bool

	// WriteSectors writes count sectors starting at sector start from src.
	// len(src) must be count * bytes-per-sector of the device.
	// Returns false on any device error.
	WriteSectors(start, count uint64, src []byte) bool
}

// BlockDevCloser is a BlockDev with a backing resource that must be
// released (an image file, for example). Close does NOT flush any cache
// sitting on top of the device.
type BlockDevCloser interface {
	BlockDev
	io.Closer // Close() error
}
