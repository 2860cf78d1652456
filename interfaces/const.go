package interf

// MinPageCount is the minimum number of page slots of a cache.
// A smaller request is raised to this value, so the replacement policy
// always has a few slots to spread the working set over.
const MinPageCount = 4

// MinSectorsPerPage is the minimum page size in sectors.
// Smaller pages would turn every small metadata probe into its own device
// transfer.
const MinSectorsPerPage = 32

// MaxSectorsPerPage is the maximum page size in sectors.
// The limit keeps the per-page dirty bitmap in a single 64 bit word, so the
// first and last dirty sector are found with bit intrinsics.
const MaxSectorsPerPage = 64

// BufferAlign is the buffer alignment in bytes. Page buffers are allocated
// with this alignment and the bulk read/write bypass only engages when the
// caller buffer has it too (typical platforms want 32 byte aligned DMA
// targets).
const BufferAlign = 32

// StoreExpireSeconds is the default value n for the read-through sector
// store. The store keeps a sector for max. n seconds.
const StoreExpireSeconds = 2 * 24 * 60 * 60 // 2 days
