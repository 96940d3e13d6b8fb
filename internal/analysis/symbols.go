// Package analysis recovers symbol and string information from loaded
// images for the symbols and strings commands.
package analysis

import (
	"cmp"
	"debug/elf"
	"fmt"
	"slices"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"vcdis/internal/elfx"
)

// SymbolEntry is one row of the symbol listing.
type SymbolEntry struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Demangled string `json:"demangled"`
	Value     uint32 `json:"value"`
	Size      uint32 `json:"size"`
	Type      string `json:"type"`
	Bind      string `json:"bind"`
	Region    string `json:"region"` // "COMMON", "UNDEF" or the defining region's name
}

// symbolCache memoises demangled names across images.
type symbolCache struct {
	mu            sync.RWMutex
	demangleCache map[string]string
	hitCount      map[string]int
}

var cache = &symbolCache{
	demangleCache: make(map[string]string),
	hitCount:      make(map[string]int),
}

// CachedDemangle demangles a C++ symbol name, returning it unchanged when it
// is not mangled.
func CachedDemangle(mangled string) string {
	cache.mu.RLock()
	cached, exists := cache.demangleCache[mangled]
	cache.mu.RUnlock()
	if exists {
		cache.mu.Lock()
		cache.hitCount[mangled]++
		cache.mu.Unlock()
		return cached
	}

	demangled := demangle.Filter(mangled, demangle.NoClones)

	cache.mu.Lock()
	cache.demangleCache[mangled] = demangled
	cache.mu.Unlock()
	return demangled
}

// GetDemangleCacheStats returns the number of cached names, the number of
// cache hits and the most requested names.
func GetDemangleCacheStats() (totalSymbols int, cacheHits int, topSymbols []string) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	type symbolHit struct {
		symbol string
		count  int
	}
	var hits []symbolHit
	for sym, count := range cache.hitCount {
		cacheHits += count
		hits = append(hits, symbolHit{sym, count})
	}
	slices.SortFunc(hits, func(a, b symbolHit) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.symbol, b.symbol))
	})

	for i := 0; i < 5 && i < len(hits); i++ {
		topSymbols = append(topSymbols, fmt.Sprintf("%s (%d hits)", hits[i].symbol, hits[i].count))
	}
	return len(cache.demangleCache), cacheHits, topSymbols
}

// ListSymbols returns the named symbols of im in symbol table order. With
// definedOnly, undefined symbols are left out.
func ListSymbols(im *elfx.Image, definedOnly bool) []SymbolEntry {
	var out []SymbolEntry
	for i, s := range im.Symbols {
		if i == 0 || s.Name == "" || s.Type == elf.STT_SECTION || s.Type == elf.STT_FILE {
			continue
		}
		if definedOnly && s.Section == elf.SHN_UNDEF {
			continue
		}
		out = append(out, SymbolEntry{
			Index:     i,
			Name:      s.Name,
			Demangled: CachedDemangle(s.Name),
			Value:     s.Value,
			Size:      s.Size,
			Type:      symbolType(s.Type),
			Bind:      symbolBind(s.Bind),
			Region:    regionName(im, s.Section),
		})
	}
	return out
}

func regionName(im *elfx.Image, idx elf.SectionIndex) string {
	switch idx {
	case elf.SHN_UNDEF:
		return "UNDEF"
	case elf.SHN_COMMON:
		return "COMMON"
	case elf.SHN_ABS:
		return "ABS"
	}
	if r, ok := im.RegionByIndex(idx); ok {
		return r.Name
	}
	if im.File != nil && int(idx) < len(im.File.Sections) {
		return im.File.Sections[idx].Name
	}
	return fmt.Sprintf("#%d", idx)
}

func symbolType(t elf.SymType) string {
	switch t {
	case elf.STT_NOTYPE:
		return "NOTYPE"
	case elf.STT_OBJECT:
		return "OBJECT"
	case elf.STT_FUNC:
		return "FUNC"
	case elf.STT_TLS:
		return "TLS"
	default:
		return fmt.Sprintf("%d", t)
	}
}

func symbolBind(b elf.SymBind) string {
	switch b {
	case elf.STB_LOCAL:
		return "LOCAL"
	case elf.STB_GLOBAL:
		return "GLOBAL"
	case elf.STB_WEAK:
		return "WEAK"
	default:
		return fmt.Sprintf("%d", b)
	}
}
