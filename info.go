package smf

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// Info renders a human readable summary of the container.
func (f *File) Info() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	h := &f.header
	fmt.Fprintf(buf, "[INFO]: %s\n", f.path)
	fmt.Fprintf(buf, "\tVersion: %d\n\tID:      %d\n\n", h.Version, h.ID)
	fmt.Fprintf(buf, "\tWidth:          %d | %d\n", h.Width, h.Width/MapUnit)
	fmt.Fprintf(buf, "\tLength:         %d | %d\n", h.Length, h.Length/MapUnit)
	fmt.Fprintf(buf, "\tSquareSize:     %d\n", h.SquareSize)
	fmt.Fprintf(buf, "\tTexelPerSquare: %d\n", h.SquareTexels)
	fmt.Fprintf(buf, "\tTileSize:       %d\n", h.TileSize)
	fmt.Fprintf(buf, "\tMinHeight:      %g\n", h.Floor)
	fmt.Fprintf(buf, "\tMaxHeight:      %g\n\n", h.Ceiling)

	section := func(name string, ptr int64, spec string) {
		fmt.Fprintf(buf, "\t%-12s %#08x %s\n", name+":", ptr, spec)
	}
	s := &f.specs
	section("HeightPtr", f.layout.Height, specString(s.Height.Width, s.Height.Height, s.Height.Channels, s.Height.Format.String()))
	section("TypePtr", f.layout.Type, specString(s.Type.Width, s.Type.Height, s.Type.Channels, s.Type.Format.String()))
	section("TilesPtr", f.layout.Tiles, "")
	section("MapPtr", f.layout.Map, specString(s.Map.Width, s.Map.Height, s.Map.Channels, s.Map.Format.String()))
	section("MiniPtr", f.layout.Preview, specString(s.Preview.Width, s.Preview.Height, s.Preview.Channels, "DXT1"))
	section("MetalPtr", f.layout.Metal, specString(s.Metal.Width, s.Metal.Height, s.Metal.Channels, s.Metal.Format.String()))
	section("FeaturesPtr", f.layout.Features, "")

	fmt.Fprintf(buf, "  HeaderExtras: %d\n", len(f.extras))
	for _, e := range f.extras {
		switch e := e.(type) {
		case *NullHeader:
			fmt.Fprintf(buf, "    Null Header\n\tsize: %d\n\ttype: %d\n", e.Size(), e.Type())
		case *VegetationHeader:
			fmt.Fprintf(buf, "    Vegetation\n\tsize: %d\n\ttype: %d\n\tptr:  %#08x %s\n", e.Size(), e.Type(), e.Ptr,
				specString(s.Vegetation.Width, s.Vegetation.Height, s.Vegetation.Channels, s.Vegetation.Format.String()))
		default:
			fmt.Fprintf(buf, "    Unknown\n\tsize: %d\n\ttype: %d\n", e.Size(), e.Type())
		}
	}

	fmt.Fprintf(buf, "  Tile Index Information\n\tTile Files:  %d\n\tTotal tiles: %d\n", len(f.tiles.Files), f.tiles.Tiles())
	for _, t := range f.tiles.Files {
		fmt.Fprintf(buf, "\t    %s:%d\n", t.Name, t.Tiles)
	}

	fmt.Fprintf(buf, "  Features Information\n\tFeatures: %d\n\tTypes:    %d\n", len(f.features.Features), len(f.features.Types))

	if pending := f.pending.list(); len(pending) != 0 {
		fmt.Fprintf(buf, "  Pending: %v\n", pending)
	}
	return buf.String()
}

func specString(width, height, channels int, format string) string {
	return fmt.Sprintf("%dx%d:%d %s", width, height, channels, format)
}
