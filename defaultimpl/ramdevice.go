package impl

import (
	"errors"
	"sync"

	interf "github.com/extremscorner/libntfs/interfaces"
)

// interface check: interf.BlockDev
var _ interf.BlockDev = (*_RamDevice)(nil)

// @see interf.BlockDev
//
// _RamDevice keeps all sectors in RAM. This implementation is mainly for
// testing: it is the reference backend for the cache tests and small
// experiments.
type _RamDevice struct {
	bytesPerSector uint64
	data           []byte
	mux            *sync.RWMutex
}

// NewRamDevice returns the RAM implementation of interf.BlockDev with
// numSectors sectors of bytesPerSector bytes, all zero.
func NewRamDevice(numSectors, bytesPerSector uint64) (interf.BlockDev, error) {
	// check input
	if numSectors == 0 || bytesPerSector == 0 {
		return nil, errors.New("can't create new RamDevice with numSectors=0 or bytesPerSector=0")
	}

	return &_RamDevice{
		bytesPerSector: bytesPerSector,
		data:           make([]byte, numSectors*bytesPerSector),
		mux:            new(sync.RWMutex),
	}, nil
}

//-----------  IMPLEMENTATION:  @see interf.BlockDev  ----------------------------------------------------------------//

func (d *_RamDevice) ReadSectors(start, count uint64, dst []byte) bool {
	d.mux.RLock() // READ Lock
	defer d.mux.RUnlock()

	end := start + count
	if end < start || end*d.bytesPerSector > uint64(len(d.data)) {
		return false
	}
	if uint64(len(dst)) < count*d.bytesPerSector {
		return false
	}

	copy(dst, d.data[start*d.bytesPerSector:end*d.bytesPerSector])
	return true
}

func (d *_RamDevice) WriteSectors(start, count uint64, src []byte) bool {
	d.mux.Lock() // WRITE Lock
	defer d.mux.Unlock()

	end := start + count
	if end < start || end*d.bytesPerSector > uint64(len(d.data)) {
		return false
	}
	if uint64(len(src)) < count*d.bytesPerSector {
		return false
	}

	copy(d.data[start*d.bytesPerSector:end*d.bytesPerSector], src)
	return true
}
