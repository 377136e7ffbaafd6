package smf

// Sizes the serialized size of every section of a container.
type Sizes struct {
	Header    int64
	Extras    int64
	Height    int64
	Type      int64
	TileIndex int64
	Map       int64
	Preview   int64
	Metal     int64
	Features  int64
	// Payloads the sizes of extension payloads stored after the feature table, in chain order.
	Payloads []int64
}

// Layout the absolute offset of every section of a container.
type Layout struct {
	Height   int64
	Type     int64
	Tiles    int64
	Map      int64
	Preview  int64
	Metal    int64
	Features int64
	// Payloads the offsets of extension payloads, in chain order.
	Payloads []int64
	// End the offset of the first byte after the last section.
	End int64
}

// ComputeLayout derives the offset of every section from the given sizes.
// Sections are stored back to back in a fixed order, so a change to the size of
// any section moves every section after it.
func ComputeLayout(s Sizes) Layout {
	var l Layout
	l.Height = s.Header + s.Extras
	l.Type = l.Height + s.Height
	l.Tiles = l.Type + s.Type
	l.Map = l.Tiles + s.TileIndex
	l.Preview = l.Map + s.Map
	l.Metal = l.Preview + s.Preview
	l.Features = l.Metal + s.Metal

	end := l.Features + s.Features
	if len(s.Payloads) > 0 {
		l.Payloads = make([]int64, len(s.Payloads))
		for i, size := range s.Payloads {
			l.Payloads[i] = end
			end += size
		}
	}
	l.End = end
	return l
}

// extent a region of the file.
type extent struct{ off, size int64 }

// payload sections in the order returned by extents.
const (
	payloadHeight = iota
	payloadType
	payloadMap
	payloadPreview
	payloadMetal
	fixedPayloads
)

// extents returns the regions of every image payload.
// Extension payloads follow the fixed payloads in chain order.
func (l *Layout) extents(s *Sizes) []extent {
	e := make([]extent, fixedPayloads, fixedPayloads+len(l.Payloads))
	e[payloadHeight] = extent{l.Height, s.Height}
	e[payloadType] = extent{l.Type, s.Type}
	e[payloadMap] = extent{l.Map, s.Map}
	e[payloadPreview] = extent{l.Preview, s.Preview}
	e[payloadMetal] = extent{l.Metal, s.Metal}
	for i, off := range l.Payloads {
		e = append(e, extent{off, s.Payloads[i]})
	}
	return e
}
