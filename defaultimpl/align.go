package impl

import (
	"unsafe"

	interf "github.com/extremscorner/libntfs/interfaces"
)

// AlignedBuffer returns a zeroed byte slice of the given size whose first
// byte sits on a interf.BufferAlign boundary. Page buffers use this, and
// callers that want the bulk bypass should allocate their transfer buffers
// with it too.
func AlignedBuffer(size uint64) []byte {
	raw := make([]byte, size+interf.BufferAlign-1)
	var off uint64
	if r := uint64(uintptr(unsafe.Pointer(&raw[0])) % interf.BufferAlign); r != 0 {
		off = interf.BufferAlign - r
	}
	return raw[off : off+size : off+size]
}

// Aligned reports whether the first byte of b sits on a interf.BufferAlign
// boundary. An empty slice has no first byte and is never aligned.
func Aligned(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&b[0]))%interf.BufferAlign == 0
}
