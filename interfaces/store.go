package interf

// SectorStore keeps raw device sectors in RAM for the read-through device
// decorator. Entries may be evicted at any time when the store is full and
// expire after StoreExpireSeconds.
// If possible, there should only be one common large store (reuse the
// object in your program).
type SectorStore interface {

	// Get returns the stored sector or a 'not found' error.
	// This method doesn't allocate memory when the capacity of buf is
	// greater or equal to one sector.
	Get(sector uint64, buf []byte) ([]byte, error)

	// Set stores the sector in the store.
	// Old data can be deleted if the store is full.
	Set(sector uint64, data []byte) error

	// Size returns the max. capacity of this store in bytes.
	Size() int64
}
