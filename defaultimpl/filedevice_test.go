package impl_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	impl "github.com/extremscorner/libntfs/defaultimpl"
)

// initTestImage creates an image file with numSectors sectors of 512 bytes
// where every byte of sector s is byte(s).
func initTestImage(t *testing.T, numSectors uint64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.img")
	data := make([]byte, numSectors*512)
	for s := uint64(0); s < numSectors; s++ {
		for i := uint64(0); i < 512; i++ {
			data[s*512+i] = byte(s)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewFileDevice(t *testing.T) {
	// test with invalid parameters
	if _, _, err := impl.NewFileDevice(initTestImage(t, 4), 0); err == nil {
		t.Fatal("no error with bytesPerSector=0")
	}
	if _, _, err := impl.NewFileDevice(filepath.Join(t.TempDir(), "missing.img"), 512); err == nil {
		t.Fatal("no error with missing image")
	}

	// an image smaller than one sector is rejected
	small := filepath.Join(t.TempDir(), "small.img")
	if err := os.WriteFile(small, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := impl.NewFileDevice(small, 512); err == nil {
		t.Fatal("no error with undersized image")
	}

	// test with valid parameters
	dev, numSectors, err := impl.NewFileDevice(initTestImage(t, 16), 512)
	if err != nil {
		t.Fatal(err)
	}
	if numSectors != 16 {
		t.Fatalf("invalid sector count %d", numSectors)
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileDevice_ReadWrite(t *testing.T) {
	path := initTestImage(t, 16)
	dev, _, err := impl.NewFileDevice(path, 512)
	if err != nil {
		t.Fatal(err)
	}

	// read the seeded data
	dst := make([]byte, 2*512)
	if !dev.ReadSectors(3, 2, dst) {
		t.Fatal("ReadSectors failed")
	}
	if !bytes.Equal(dst[:512], bytes.Repeat([]byte{3}, 512)) {
		t.Fatal("invalid data")
	}

	// out of range
	if dev.ReadSectors(15, 2, dst) {
		t.Fatal("no error reading beyond the image")
	}
	if dev.WriteSectors(16, 1, dst[:512]) {
		t.Fatal("no error writing beyond the image")
	}

	// writes persist across a reopen
	src := bytes.Repeat([]byte{0xAB}, 512)
	if !dev.WriteSectors(7, 1, src) {
		t.Fatal("WriteSectors failed")
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}

	dev2, _, err := impl.NewFileDevice(path, 512)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev2.Close() }()

	if !dev2.ReadSectors(7, 1, dst[:512]) {
		t.Fatal("ReadSectors failed")
	}
	if !bytes.Equal(dst[:512], src) {
		t.Fatal("write lost across reopen")
	}
}

func TestFileDevice_WithCache(t *testing.T) {
	path := initTestImage(t, 128)
	dev, numSectors, err := impl.NewFileDevice(path, 512)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev.Close() }()

	c, err := impl.NewCache(4, 32, dev, numSectors, 512, impl.DebugOff)
	if err != nil {
		t.Fatal(err)
	}

	if !c.WritePartialSector([]byte{0xCC}, 100, 256, 1) {
		t.Fatal("WritePartialSector failed")
	}
	if !c.Flush() {
		t.Fatal("Flush failed")
	}

	dst := make([]byte, 512)
	if !dev.ReadSectors(100, 1, dst) {
		t.Fatal("ReadSectors failed")
	}
	if dst[256] != 0xCC {
		t.Fatal("partial write not in the image")
	}
	if dst[255] != 100 || dst[257] != 100 {
		t.Fatal("partial write touched surrounding bytes")
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
