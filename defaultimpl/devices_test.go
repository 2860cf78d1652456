package impl_test

import (
	"bytes"
	"testing"

	impl "github.com/extremscorner/libntfs/defaultimpl"
	interf "github.com/extremscorner/libntfs/interfaces"
)

// countDev wraps an inner device and counts calls for the tests.
type countDev struct {
	inner  interf.BlockDev
	reads  int
	writes int
}

func (d *countDev) ReadSectors(start, count uint64, dst []byte) bool {
	d.reads++
	return d.inner.ReadSectors(start, count, dst)
}

func (d *countDev) WriteSectors(start, count uint64, src []byte) bool {
	d.writes++
	return d.inner.WriteSectors(start, count, src)
}

//--------------------------------------------------------------------------------------------------------------------//

func TestNewRamDevice(t *testing.T) {
	// test with invalid parameters
	if _, err := impl.NewRamDevice(0, 512); err == nil {
		t.Fatal("no error with numSectors=0")
	}
	if _, err := impl.NewRamDevice(16, 0); err == nil {
		t.Fatal("no error with bytesPerSector=0")
	}

	// test with valid parameters
	dev, err := impl.NewRamDevice(16, 512)
	if err != nil {
		t.Fatal(err)
	}

	// a new device is zeroed
	buf := make([]byte, 512)
	if !dev.ReadSectors(0, 1, buf) {
		t.Fatal("ReadSectors failed")
	}
	if !bytes.Equal(buf, make([]byte, 512)) {
		t.Fatal("new device not zeroed")
	}
}

func TestRamDevice_ReadWrite(t *testing.T) {
	dev, err := impl.NewRamDevice(16, 512)
	if err != nil {
		t.Fatal(err)
	}

	// write and read back
	src := bytes.Repeat([]byte{0x5A}, 2*512)
	if !dev.WriteSectors(3, 2, src) {
		t.Fatal("WriteSectors failed")
	}
	dst := make([]byte, 2*512)
	if !dev.ReadSectors(3, 2, dst) {
		t.Fatal("ReadSectors failed")
	}
	if !bytes.Equal(dst, src) {
		t.Fatal("invalid data")
	}

	// out of range
	if dev.ReadSectors(15, 2, dst) {
		t.Fatal("no error reading beyond the device")
	}
	if dev.WriteSectors(16, 1, src[:512]) {
		t.Fatal("no error writing beyond the device")
	}

	// short buffer
	if dev.ReadSectors(0, 2, dst[:512]) {
		t.Fatal("no error with short buffer")
	}
}
