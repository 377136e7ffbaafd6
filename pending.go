package smf

import "github.com/bits-and-blooms/bitset"

// Section a structural section of a container whose bytes are derived from in-memory state.
// Image payloads are not sections, they are written when requested.
type Section uint

// structural sections, in file order
const (
	SectionHeader Section = iota
	SectionExtraHeaders
	SectionTileIndex
	SectionFeatures

	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionHeader:
		return "header"
	case SectionExtraHeaders:
		return "extra headers"
	case SectionTileIndex:
		return "tile index"
	case SectionFeatures:
		return "features"
	default:
		return "unknown"
	}
}

// pending the set of sections that must be written to bring the file in sync with memory.
type pending struct{ bits *bitset.BitSet }

func newPending() pending { return pending{bits: bitset.New(uint(sectionCount))} }

func (p pending) mark(s ...Section) {
	for _, s := range s {
		p.bits.Set(uint(s))
	}
}

func (p pending) markAll() {
	for s := Section(0); s < sectionCount; s++ {
		p.bits.Set(uint(s))
	}
}

func (p pending) clear(s Section) { p.bits.Clear(uint(s)) }

func (p pending) clearAll() { p.bits.ClearAll() }

func (p pending) test(s Section) bool { return p.bits.Test(uint(s)) }

// list returns the pending sections in file order.
func (p pending) list() (s []Section) {
	for i, ok := p.bits.NextSet(0); ok; i, ok = p.bits.NextSet(i + 1) {
		s = append(s, Section(i))
	}
	return s
}
