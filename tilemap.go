package smf

import "github.com/yehan2002/fastbytes/v2"

// TileMap the grid of tile references.
// Every entry is the index of a tile in the concatenation of all atlases in the tile index.
type TileMap struct {
	Width  int
	Height int
	Tiles  []uint32
}

// NewTileMap returns a zeroed tile map.
func NewTileMap(width, height int) *TileMap {
	return &TileMap{Width: width, Height: height, Tiles: make([]uint32, width*height)}
}

// At returns the tile at x,y.
func (t *TileMap) At(x, y int) uint32 { return t.Tiles[y*t.Width+x] }

// Set sets the tile at x,y.
func (t *TileMap) Set(x, y int, tile uint32) { t.Tiles[y*t.Width+x] = tile }

func (t *TileMap) bytes() []byte {
	b := make([]byte, len(t.Tiles)*4)
	fastbytes.LittleEndian.FromU32(t.Tiles, b)
	return b
}

func tileMapFrom(width, height int, b []byte) *TileMap {
	t := NewTileMap(width, height)
	fastbytes.LittleEndian.ToU32(b, t.Tiles)
	return t
}
