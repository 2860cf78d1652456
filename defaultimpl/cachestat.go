package impl

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// DebugOff deactivates all debug messages, device errors included. The counters are still collected.
const DebugOff = 0

// DebugLow shows debug messages that happen very rarely during operation (to keep the log files small).
const DebugLow = 1

// DebugHigh shows all debug messages.
const DebugHigh = 2

//--------------------------------------------------------------------------------------------------------------------//

type _CacheStat struct {
	debugLvl    uint8  // enable debug logging [0, 1, 2] (level: high=2)
	packageName string // text for debug logging

	_CacheHit       uint64
	_CacheMis       uint64
	_CacheEvict     uint64
	_CacheWriteback uint64
	_BypassRead     uint64
	_BypassWrite    uint64
	_PartialRead    uint64
	_PartialWrite   uint64
	_Flush          uint64
	_Invalidate     uint64
	_DevErr         uint64
}

func (s *_CacheStat) Stat() map[string]uint64 {
	ret := map[string]uint64{
		"CacheHit":       atomic.LoadUint64(&s._CacheHit),
		"CacheMis":       atomic.LoadUint64(&s._CacheMis),
		"CacheEvict":     atomic.LoadUint64(&s._CacheEvict),
		"CacheWriteback": atomic.LoadUint64(&s._CacheWriteback),
		"BypassRead":     atomic.LoadUint64(&s._BypassRead),
		"BypassWrite":    atomic.LoadUint64(&s._BypassWrite),
		"PartialRead":    atomic.LoadUint64(&s._PartialRead),
		"PartialWrite":   atomic.LoadUint64(&s._PartialWrite),
		"Flush":          atomic.LoadUint64(&s._Flush),
		"Invalidate":     atomic.LoadUint64(&s._Invalidate),
		"DevErr":         atomic.LoadUint64(&s._DevErr),
	}

	// ignore zero values
	for k, v := range ret {
		if v == 0 {
			delete(ret, k)
		}
	}
	return ret
}

func (s *_CacheStat) PrintStatAfterClose() {
	// final call in .Close()

	first := true
	var sb strings.Builder
	for k, v := range s.Stat() {
		if !first {
			sb.WriteString(", ")
		} else {
			first = false
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%d", v))
	}

	if s.debugLvl >= DebugLow { // Debug level: low=1
		log.Printf("DEBUG: %s/stat.PrintStatAfterClose: %s", s.packageName, sb.String())
	}
}

// ------------------------------------------------------------------------------------------------------------------ //

func (s *_CacheStat) CacheHit(sector uint64) {
	atomic.AddUint64(&s._CacheHit, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.CacheHit: sector=%d", s.packageName, sector)
	}
}

func (s *_CacheStat) CacheMis(sector uint64) {
	atomic.AddUint64(&s._CacheMis, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.CacheMis: sector=%d", s.packageName, sector)
	}
}

func (s *_CacheStat) CacheEvict(base uint64, dirty uint64) {
	atomic.AddUint64(&s._CacheEvict, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.CacheEvict: base=%d, dirty=%#x", s.packageName, base, dirty)
	}
}

func (s *_CacheStat) CacheWriteback(start, count uint64) {
	atomic.AddUint64(&s._CacheWriteback, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.CacheWriteback: start=%d, count=%d", s.packageName, start, count)
	}
}

func (s *_CacheStat) BypassRead(start, count uint64) {
	atomic.AddUint64(&s._BypassRead, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.BypassRead: start=%d, count=%d", s.packageName, start, count)
	}
}

func (s *_CacheStat) BypassWrite(start, count uint64) {
	atomic.AddUint64(&s._BypassWrite, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.BypassWrite: start=%d, count=%d", s.packageName, start, count)
	}
}

func (s *_CacheStat) PartialRead() {
	atomic.AddUint64(&s._PartialRead, 1)
}

func (s *_CacheStat) PartialWrite() {
	atomic.AddUint64(&s._PartialWrite, 1)
}

func (s *_CacheStat) Flush() {
	atomic.AddUint64(&s._Flush, 1)

	if s.debugLvl >= DebugHigh { // Debug level: high=2
		log.Printf("DEBUG: %s/stat.Flush", s.packageName)
	}
}

func (s *_CacheStat) Invalidate() {
	atomic.AddUint64(&s._Invalidate, 1)

	if s.debugLvl >= DebugLow { // Debug level: low=1
		log.Printf("DEBUG: %s/stat.Invalidate", s.packageName)
	}
}

func (s *_CacheStat) DevErr(op string, start, count uint64) {
	atomic.AddUint64(&s._DevErr, 1)

	if s.debugLvl >= DebugLow { // Debug level: low=1
		log.Printf("DEBUG: %s/stat.DevErr: op=%s, start=%d, count=%d", s.packageName, op, start, count)
	}
}
