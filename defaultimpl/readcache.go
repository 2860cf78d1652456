package impl

import (
	"errors"

	interf "github.com/extremscorner/libntfs/interfaces"
)

// interface check: interf.BlockDev
var _ interf.BlockDev = (*_ReadCacheDev)(nil)

// @see interf.BlockDev
//
// _ReadCacheDev serves repeated sector reads from a RAM store instead of
// the inner device. It sits BELOW the page cache at the device boundary,
// so bypass transfers and writebacks pass through it as well and the store
// never holds stale sectors: every write goes to the inner device first
// and then refreshes the store.
type _ReadCacheDev struct {
	inner          interf.BlockDev
	store          interf.SectorStore
	bytesPerSector uint64
}

// NewReadCacheDev wraps the inner device with a read-through sector store.
func NewReadCacheDev(inner interf.BlockDev, store interf.SectorStore, bytesPerSector uint64) (interf.BlockDev, error) {
	// check input
	if inner == nil || store == nil {
		return nil, errors.New("can't create new ReadCacheDev with inner=nil or store=nil")
	}
	if bytesPerSector == 0 {
		return nil, errors.New("can't create new ReadCacheDev with bytesPerSector=0")
	}

	return &_ReadCacheDev{
		inner:          inner,
		store:          store,
		bytesPerSector: bytesPerSector,
	}, nil
}

//-----------  IMPLEMENTATION:  @see interf.BlockDev  ----------------------------------------------------------------//

func (d *_ReadCacheDev) ReadSectors(start, count uint64, dst []byte) bool {
	bps := d.bytesPerSector

	for i := uint64(0); i < count; i++ {
		off := i * bps

		b, err := d.store.Get(start+i, dst[off:off+bps])
		if err == nil && uint64(len(b)) == bps {
			if &b[0] != &dst[off] {
				copy(dst[off:off+bps], b)
			}
			continue
		}

		// miss: one inner transfer for the whole remainder (the device
		// favours long transfers), then refresh the store
		if !d.inner.ReadSectors(start+i, count-i, dst[off:off+(count-i)*bps]) {
			return false
		}
		for j := i; j < count; j++ {
			_ = d.store.Set(start+j, dst[j*bps:(j+1)*bps])
		}
		return true
	}

	return true
}

func (d *_ReadCacheDev) WriteSectors(start, count uint64, src []byte) bool {
	if !d.inner.WriteSectors(start, count, src) {
		return false
	}

	bps := d.bytesPerSector
	for i := uint64(0); i < count; i++ {
		_ = d.store.Set(start+i, src[i*bps:(i+1)*bps])
	}
	return true
}
