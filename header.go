package smf

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	// HeaderSize the size of the fixed header.
	HeaderSize = 80
	// Version the only supported format version.
	Version = 1

	// MapUnit the number of elevation grid units per map size unit passed to [File.SetSize].
	MapUnit = 64

	defaultSquareSize   = 8
	defaultSquareTexels = 8
	defaultTileSize     = 32
	defaultFloor        = 10
	defaultCeiling      = 256
	defaultSize         = 2 * MapUnit
)

// Signature the first 16 bytes of every container.
var Signature = [16]byte{'s', 'p', 'r', 'i', 'n', 'g', ' ', 'm', 'a', 'p', ' ', 'f', 'i', 'l', 'e'}

// Header the fixed header at the start of a container.
// Every offset is either zero or the value computed by [ComputeLayout].
type Header struct {
	Magic   [16]byte
	Version int32
	ID      int32

	// Width and Length in elevation grid units.
	Width  int32
	Length int32

	SquareSize   int32
	SquareTexels int32
	TileSize     int32

	// Floor and Ceiling the elevation range in meters.
	Floor   float32
	Ceiling float32

	HeightPtr   int32
	TypePtr     int32
	TilesPtr    int32
	MiniPtr     int32
	MetalPtr    int32
	FeaturesPtr int32

	ExtraHeaders int32
}

func newHeader(id int32) Header {
	return Header{
		Magic:        Signature,
		Version:      Version,
		ID:           id,
		Width:        defaultSize,
		Length:       defaultSize,
		SquareSize:   defaultSquareSize,
		SquareTexels: defaultSquareTexels,
		TileSize:     defaultTileSize,
		Floor:        defaultFloor,
		Ceiling:      defaultCeiling,
	}
}

// apply copies the section offsets of l into the header.
func (h *Header) apply(l *Layout, extraHeaders int) {
	h.HeightPtr = int32(l.Height)
	h.TypePtr = int32(l.Type)
	h.TilesPtr = int32(l.Tiles)
	h.MiniPtr = int32(l.Preview)
	h.MetalPtr = int32(l.Metal)
	h.FeaturesPtr = int32(l.Features)
	h.ExtraHeaders = int32(extraHeaders)
}

func (h *Header) marshal() []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func (h *Header) unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrSignature
	}
	if !bytes.Equal(buf[:len(Signature)], Signature[:]) {
		return ErrSignature
	}
	return binary.Read(bytes.NewReader(buf[:HeaderSize]), binary.LittleEndian, h)
}

// valid checks the fields a layout is derived from.
func (h *Header) valid() bool {
	if h.Width < 0 || h.Length < 0 || h.TileSize <= 0 || h.ExtraHeaders < 0 {
		return false
	}
	// the heightmap alone must be addressable by a section pointer
	return (int64(h.Width)+1)*(int64(h.Length)+1) <= math.MaxInt32
}
