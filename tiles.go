package smf

import (
	"bufio"
	"encoding/binary"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yehan2002/errors"
)

// ClearTiles passing this name to [File.AddTileFile] empties the tile index.
const ClearTiles = "CLEAR"

const (
	tileIndexHeaderSize = 8
	maxNameSize         = 1024
)

// TileFile an entry of the tile index.
type TileFile struct {
	// Tiles the number of tiles in the atlas.
	Tiles uint32
	// Name the path of the atlas.
	Name string
}

// TileIndex the list of tile atlases referenced by the tile map.
// A tile map entry addresses tiles by their position in the concatenation of all atlases.
type TileIndex struct {
	Files []TileFile
}

// Tiles the total number of tiles in all atlases.
func (t *TileIndex) Tiles() (total uint32) {
	for _, f := range t.Files {
		total += f.Tiles
	}
	return total
}

// Size the serialized size of the index.
func (t *TileIndex) Size() int64 {
	size := int64(tileIndexHeaderSize)
	for _, f := range t.Files {
		size += 4 + int64(len(f.Name)) + 1
	}
	return size
}

// Add appends an atlas to the index.
func (t *TileIndex) Add(tiles uint32, name string) {
	t.Files = append(t.Files, TileFile{Tiles: tiles, Name: name})
}

// Clear removes every atlas from the index.
func (t *TileIndex) Clear() { t.Files = nil }

func (t *TileIndex) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Files)))
	b = binary.LittleEndian.AppendUint32(b, t.Tiles())
	for _, f := range t.Files {
		b = binary.LittleEndian.AppendUint32(b, f.Tiles)
		b = append(b, f.Name...)
		b = append(b, 0)
	}
	return b
}

// readTileIndex reads a tile index from r.
// The stored total tile count is not kept, it is always derived from the entries.
func readTileIndex(r *bufio.Reader, logger logrus.FieldLogger) (TileIndex, error) {
	var t TileIndex
	var header [tileIndexHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return t, errors.CauseStr(ErrCorrupted, "truncated tile index")
	}

	files := int32(binary.LittleEndian.Uint32(header[0:]))
	total := binary.LittleEndian.Uint32(header[4:])
	if files < 0 {
		return t, errors.CauseStr(ErrCorrupted, "invalid tile file count")
	}

	var count [4]byte
	for i := int32(0); i < files; i++ {
		if _, err := io.ReadFull(r, count[:]); err != nil {
			return TileIndex{}, errors.CauseStr(ErrCorrupted, "truncated tile index")
		}
		name, err := readName(r)
		if err != nil {
			return TileIndex{}, errors.CauseStr(ErrCorrupted, "invalid tile file name")
		}
		t.Add(binary.LittleEndian.Uint32(count[:]), name)
	}

	if total != t.Tiles() {
		logger.Warnf("smf: tile index declares %d tiles but its files contain %d", total, t.Tiles())
	}
	return t, nil
}

// readName reads a null terminated string.
func readName(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == 0 {
			return sb.String(), nil
		}
		if sb.Len() >= maxNameSize {
			return "", errNameTooLong
		}
		sb.WriteByte(c)
	}
}
