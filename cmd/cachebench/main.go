// Command cachebench runs a deterministic mixed workload through the sector
// cache on top of an image file and prints the internal stat counters. At
// the end the image is compared against a shadow copy maintained with
// direct I/O, so a run doubles as an end-to-end consistency check.
//
// Example:
//
//	cachebench --image test.img --sectors 65536 --ops 200000
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	impl "github.com/extremscorner/libntfs/defaultimpl"
	interf "github.com/extremscorner/libntfs/interfaces"
)

// benchConfig is the optional HuJSON config file. Flags override it.
type benchConfig struct {
	Pages          uint `json:"pages"`
	SectorsPerPage uint `json:"sectorsPerPage"`
	ReadCacheMB    int  `json:"readCacheMB"`
}

func loadConfig(path string) (*benchConfig, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from the --config flag
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := &benchConfig{}
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func main() {
	image := pflag.String("image", "", "image file to run against (required)")
	sectors := pflag.Uint64("sectors", 0, "create or grow the image to this many sectors before the run")
	bps := pflag.Uint("bps", 512, "bytes per sector")
	pages := pflag.Uint("pages", 8, "cache pages")
	sectorsPerPage := pflag.Uint("sectors-per-page", 32, "sectors per cache page")
	readCacheMB := pflag.Int("read-cache-mb", 0, "read-through sector store size in MB (0 = off)")
	ops := pflag.Int("ops", 100000, "operations to run")
	seed := pflag.Int64("seed", 1337, "workload seed")
	config := pflag.String("config", "", "optional HuJSON config file")
	debug := pflag.Uint8("debug", impl.DebugOff, "debug level (0-2)")
	pflag.Parse()

	if *image == "" {
		fmt.Fprintln(os.Stderr, "cachebench: --image is required")
		pflag.Usage()
		os.Exit(2)
	}

	if *config != "" {
		cfg, err := loadConfig(*config)
		if err != nil {
			fatal(err)
		}
		if cfg.Pages != 0 && !pflag.CommandLine.Changed("pages") {
			*pages = cfg.Pages
		}
		if cfg.SectorsPerPage != 0 && !pflag.CommandLine.Changed("sectors-per-page") {
			*sectorsPerPage = cfg.SectorsPerPage
		}
		if cfg.ReadCacheMB != 0 && !pflag.CommandLine.Changed("read-cache-mb") {
			*readCacheMB = cfg.ReadCacheMB
		}
	}

	if err := run(*image, *sectors, *bps, *pages, *sectorsPerPage, *readCacheMB, *ops, *seed, *debug); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "cachebench: %v\n", err)
	os.Exit(1)
}

func run(image string, sectors uint64, bps, pages, sectorsPerPage uint, readCacheMB, ops int, seed int64, debug uint8) error {
	// create or grow the image first if requested
	if sectors > 0 {
		f, err := os.OpenFile(image, os.O_RDWR|os.O_CREATE, 0o644) //nolint:gosec // path comes from the --image flag
		if err != nil {
			return fmt.Errorf("creating image: %w", err)
		}
		if info, _ := f.Stat(); info == nil || uint64(info.Size()) < sectors*uint64(bps) {
			if err := f.Truncate(int64(sectors * uint64(bps))); err != nil {
				_ = f.Close()
				return fmt.Errorf("growing image: %w", err)
			}
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	fileDev, numSectors, err := impl.NewFileDevice(image, uint64(bps))
	if err != nil {
		return err
	}
	defer func() { _ = fileDev.Close() }()

	// optional read-through store below the page cache
	var dev interf.BlockDev = fileDev
	if readCacheMB > 0 {
		store, err := impl.NewSectorStore(readCacheMB, uint64(bps))
		if err != nil {
			return err
		}
		dev, err = impl.NewReadCacheDev(fileDev, store, uint64(bps))
		if err != nil {
			return err
		}
	}

	cache, err := impl.NewCache(pages, sectorsPerPage, dev, numSectors, bps, debug)
	if err != nil {
		return err
	}

	// shadow copy via direct I/O
	shadow := make([]byte, numSectors*uint64(bps))
	if !fileDev.ReadSectors(0, numSectors, shadow) {
		return fmt.Errorf("reading image into shadow copy")
	}

	rnd := rand.New(rand.NewSource(seed))
	buf := impl.AlignedBuffer(8 * uint64(sectorsPerPage) * uint64(bps))

	for i := 0; i < ops; i++ {
		sector := rnd.Uint64() % numSectors
		switch rnd.Intn(5) {
		case 0: // bulk read
			n := rnd.Uint64()%uint64(4*sectorsPerPage) + 1
			if sector+n > numSectors {
				n = numSectors - sector
			}
			if !cache.ReadSectors(sector, n, buf[:n*uint64(bps)]) {
				return fmt.Errorf("op %d: ReadSectors(%d, %d) failed", i, sector, n)
			}
			if !bytes.Equal(buf[:n*uint64(bps)], shadow[sector*uint64(bps):(sector+n)*uint64(bps)]) {
				return fmt.Errorf("op %d: ReadSectors(%d, %d) returned stale data", i, sector, n)
			}
		case 1: // bulk write
			n := rnd.Uint64()%uint64(4*sectorsPerPage) + 1
			if sector+n > numSectors {
				n = numSectors - sector
			}
			rnd.Read(buf[:n*uint64(bps)])
			if !cache.WriteSectors(sector, n, buf[:n*uint64(bps)]) {
				return fmt.Errorf("op %d: WriteSectors(%d, %d) failed", i, sector, n)
			}
			copy(shadow[sector*uint64(bps):], buf[:n*uint64(bps)])
		case 2: // partial read
			off := uint(rnd.Intn(int(bps)))
			size := uint(rnd.Intn(int(bps-off))) + 1
			if !cache.ReadPartialSector(buf[:size], sector, off, size) {
				return fmt.Errorf("op %d: ReadPartialSector(%d, %d, %d) failed", i, sector, off, size)
			}
			want := shadow[sector*uint64(bps)+uint64(off) : sector*uint64(bps)+uint64(off)+uint64(size)]
			if !bytes.Equal(buf[:size], want) {
				return fmt.Errorf("op %d: ReadPartialSector(%d, %d, %d) returned stale data", i, sector, off, size)
			}
		case 3: // partial write
			off := uint(rnd.Intn(int(bps)))
			size := uint(rnd.Intn(int(bps-off))) + 1
			rnd.Read(buf[:size])
			if !cache.WritePartialSector(buf[:size], sector, off, size) {
				return fmt.Errorf("op %d: WritePartialSector(%d, %d, %d) failed", i, sector, off, size)
			}
			copy(shadow[sector*uint64(bps)+uint64(off):], buf[:size])
		case 4: // little-endian value
			off := uint(rnd.Intn(int(bps - 4)))
			val := rnd.Uint32()
			if !cache.WriteLittleEndianValue(val, sector, off, 4) {
				return fmt.Errorf("op %d: WriteLittleEndianValue(%d, %d) failed", i, sector, off)
			}
			s := shadow[sector*uint64(bps)+uint64(off):]
			s[0], s[1], s[2], s[3] = byte(val), byte(val>>8), byte(val>>16), byte(val>>24)
		}
	}

	if !cache.Flush() {
		return fmt.Errorf("final flush failed")
	}

	// verify: the flushed image must equal the shadow copy
	check := make([]byte, len(shadow))
	if !fileDev.ReadSectors(0, numSectors, check) {
		return fmt.Errorf("reading image for verification")
	}
	if !bytes.Equal(check, shadow) {
		return fmt.Errorf("image differs from direct-I/O shadow copy")
	}

	fmt.Printf("ok: %d ops over %d sectors\n", ops, numSectors)
	for k, v := range cache.Stat() {
		fmt.Printf("  %s=%d\n", k, v)
	}
	return cache.Close()
}
