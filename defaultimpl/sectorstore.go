package impl

import (
	"encoding/binary"
	"errors"

	interf "github.com/extremscorner/libntfs/interfaces"
	"github.com/coocood/freecache"
)

// interface check: interf.SectorStore
var _ interf.SectorStore = (*_SectorStore)(nil)

// @see interf.SectorStore
//
// _SectorStore keeps raw device sectors in RAM for the read-through device
// decorator (@see NewReadCacheDev).
type _SectorStore struct {
	store *freecache.Cache // RAM store for sectors
	size  int64
}

// NewSectorStore returns the default implementation of interf.SectorStore.
// storeSizeMB is raised so the store holds at least 1024 sectors.
func NewSectorStore(storeSizeMB int, bytesPerSector uint64) (interf.SectorStore, error) {
	// check input
	if bytesPerSector == 0 {
		return nil, errors.New("can't create new SectorStore with bytesPerSector=0")
	}

	// store min. size
	min := int((1024*bytesPerSector)/(1024*1024)) + 1
	if storeSizeMB < min {
		storeSizeMB = min
	}

	storeSize := storeSizeMB * 1024 * 1024
	return &_SectorStore{
		store: freecache.NewCache(storeSize),
		size:  int64(storeSize),
	}, nil
}

//-----------  IMPLEMENTATION:  @see interf.SectorStore  -------------------------------------------------------------//

// @see interf.SectorStore
//
// Get returns the stored sector or a 'not found' error.
// This method doesn't allocate memory when the capacity of buf is greater or equal to one sector.
func (s *_SectorStore) Get(sector uint64, buf []byte) ([]byte, error) {
	return s.store.GetWithBuf(s.calcStoreKey(sector), buf)
}

// @see interf.SectorStore
//
// Set stores the sector in the store.
// Old data can be deleted if the store is full.
// The sector expires after interf.StoreExpireSeconds.
func (s *_SectorStore) Set(sector uint64, data []byte) error {
	return s.store.Set(s.calcStoreKey(sector), data, interf.StoreExpireSeconds)
}

// @see interf.SectorStore
//
// Size returns the max. capacity of this store in bytes.
func (s *_SectorStore) Size() int64 {
	return s.size
}

//-----  HELPER  -----------------------------------------------------------------------------------------------------//

// calcStoreKey converts a sector number into a byte key for the store.
func (s *_SectorStore) calcStoreKey(sector uint64) []byte {
	var bKey [8]byte
	binary.LittleEndian.PutUint64(bKey[:], sector)
	return bKey[:]
}
