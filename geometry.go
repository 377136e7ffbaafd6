package smf

import "github.com/FireworkMC/smf/imagebuf"

// Specs the pixel layout of every fixed layout section.
type Specs struct {
	Height     imagebuf.Spec
	Type       imagebuf.Spec
	Map        imagebuf.Spec
	Preview    imagebuf.Spec
	Metal      imagebuf.Spec
	Vegetation imagebuf.Spec
}

// DeriveSpecs derives the section specs for a map with the given width, length and tile size.
// width and length are in elevation grid units. Divisions truncate.
func DeriveSpecs(width, length, tileSize int) Specs {
	mapWidth, mapLength := 0, 0
	if tileSize > 0 {
		mapWidth, mapLength = width*8/tileSize, length*8/tileSize
	}

	return Specs{
		Height:     imagebuf.Spec{Width: width + 1, Height: length + 1, Channels: 1, Format: imagebuf.UInt16},
		Type:       imagebuf.Spec{Width: width / 2, Height: length / 2, Channels: 1, Format: imagebuf.UInt8},
		Map:        imagebuf.Spec{Width: mapWidth, Height: mapLength, Channels: 1, Format: imagebuf.UInt32},
		Preview:    imagebuf.Spec{Width: 1024, Height: 1024, Channels: 4, Format: imagebuf.UInt8},
		Metal:      imagebuf.Spec{Width: width / 2, Height: length / 2, Channels: 1, Format: imagebuf.UInt8},
		Vegetation: imagebuf.Spec{Width: width / 4, Height: length / 4, Channels: 1, Format: imagebuf.UInt8},
	}
}
