package impl

import (
	"errors"
	"fmt"
	"os"
	"sync"

	interf "github.com/extremscorner/libntfs/interfaces"
)

// interface check: interf.BlockDevCloser
var _ interf.BlockDevCloser = (*_FileDevice)(nil)

// @see interf.BlockDev
//
// _FileDevice is a block device over a plain image file. It is the PC side
// stand-in for the platform disc interface the driver normally runs on.
type _FileDevice struct {
	f              *os.File
	bytesPerSector uint64
	numSectors     uint64
	mux            *sync.RWMutex
}

// NewFileDevice opens the image file at path as a block device with the
// given sector size. The image size is rounded down to whole sectors.
// Returns the device and its number of sectors.
func NewFileDevice(path string, bytesPerSector uint64) (interf.BlockDevCloser, uint64, error) {
	// check input
	if bytesPerSector == 0 {
		return nil, 0, errors.New("can't create new FileDevice with bytesPerSector=0")
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("opening image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat image: %w", err)
	}

	numSectors := uint64(info.Size()) / bytesPerSector
	if numSectors == 0 {
		_ = f.Close()
		return nil, 0, errors.New("image smaller than one sector")
	}

	return &_FileDevice{
		f:              f,
		bytesPerSector: bytesPerSector,
		numSectors:     numSectors,
		mux:            new(sync.RWMutex),
	}, numSectors, nil
}

//-----------  IMPLEMENTATION:  @see interf.BlockDev  ----------------------------------------------------------------//

func (d *_FileDevice) ReadSectors(start, count uint64, dst []byte) bool {
	d.mux.RLock() // READ Lock
	defer d.mux.RUnlock()

	end := start + count
	if end < start || end > d.numSectors {
		return false
	}
	if uint64(len(dst)) < count*d.bytesPerSector {
		return false
	}

	_, err := d.f.ReadAt(dst[:count*d.bytesPerSector], int64(start*d.bytesPerSector))
	return err == nil
}

func (d *_FileDevice) WriteSectors(start, count uint64, src []byte) bool {
	d.mux.Lock() // WRITE Lock
	defer d.mux.Unlock()

	end := start + count
	if end < start || end > d.numSectors {
		return false
	}
	if uint64(len(src)) < count*d.bytesPerSector {
		return false
	}

	_, err := d.f.WriteAt(src[:count*d.bytesPerSector], int64(start*d.bytesPerSector))
	return err == nil
}

func (d *_FileDevice) Close() error {
	d.mux.Lock() // WRITE Lock
	defer d.mux.Unlock()

	if err := d.f.Sync(); err != nil {
		_ = d.f.Close()
		return fmt.Errorf("sync image: %w", err)
	}
	return d.f.Close()
}
