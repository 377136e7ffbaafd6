// Package smt reads and writes tile atlas files.
//
// A tile atlas is a 32 byte header followed by a flat array of fixed size
// tiles. Every tile is a 32x32 DXT1 image with 4 mip levels.
package smt

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

const (
	// ErrInvalid returned if the file is not a tile atlas.
	ErrInvalid = errors.Const("smt: not a tile atlas")
	// ErrVersion returned if the atlas uses an unsupported version.
	ErrVersion = errors.Const("smt: unsupported version")
	// ErrExists returned by Create if the file exists and overwrite was not requested.
	ErrExists = errors.Const("smt: file already exists")
	// ErrTileSize returned if a tile does not have the expected size.
	ErrTileSize = errors.Const("smt: incorrect tile size")
	// ErrNotExist returned if a tile index is out of range.
	ErrNotExist = errors.Const("smt: tile does not exist")
)

const (
	// HeaderSize the size of the atlas header.
	HeaderSize = 32
	// TileRes the width and height of a tile.
	TileRes = 32
	// TileTypeDXT1 the only supported tile type.
	TileTypeDXT1 = 1
	// TileSize the size of a single tile: 32x32, 16x16, 8x8 and 4x4 DXT1 levels.
	TileSize = 512 + 128 + 32 + 8

	version = 1
)

var magic = [16]byte{'s', 'p', 'r', 'i', 'n', 'g', ' ', 't', 'i', 'l', 'e', 'f', 'i', 'l', 'e'}

// Header the tile atlas header.
type Header struct {
	Magic    [16]byte
	Version  int32
	Tiles    int32
	TileRes  int32
	TileType int32
}

func newHeader() Header {
	return Header{Magic: magic, Version: version, TileRes: TileRes, TileType: TileTypeDXT1}
}

func (h *Header) unmarshal(buf []byte) error {
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, h); err != nil {
		return ErrInvalid
	}
	if h.Magic != magic {
		return ErrInvalid
	}
	if h.Version != version {
		return ErrVersion
	}
	if h.Tiles < 0 || h.TileRes != TileRes || h.TileType != TileTypeDXT1 {
		return ErrInvalid
	}
	return nil
}

func (h *Header) marshal() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// File a tile atlas.
// The backing file is opened for every operation and closed before it returns.
type File struct {
	fs     afero.Fs
	path   string
	header Header
}

// Open opens the tile atlas at path.
// No state is kept if the file is not a valid atlas.
func Open(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap("smt: unable to open "+path, err)
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	if n, _ := f.ReadAt(buf, 0); n != HeaderSize {
		return nil, ErrInvalid
	}

	atlas := &File{fs: fs, path: path}
	if err = atlas.header.unmarshal(buf); err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap("smt: unable to stat "+path, err)
	}
	if HeaderSize+int64(atlas.header.Tiles)*TileSize > info.Size() {
		return nil, ErrInvalid
	}
	return atlas, nil
}

// Create creates an empty tile atlas at path.
func Create(fs afero.Fs, path string, overwrite bool) (*File, error) {
	if exists, _ := afero.Exists(fs, path); exists && !overwrite {
		return nil, ErrExists
	}

	atlas := &File{fs: fs, path: path, header: newHeader()}
	if err := afero.WriteFile(fs, path, atlas.header.marshal(), 0666); err != nil {
		return nil, errors.Wrap("smt: unable to create "+path, err)
	}
	return atlas, nil
}

// Tiles the number of tiles in the atlas.
func (a *File) Tiles() int { return int(a.header.Tiles) }

// Header returns the atlas header.
func (a *File) Header() Header { return a.header }

// Path the path of the atlas.
func (a *File) Path() string { return a.path }

// Append appends a compressed tile to the atlas.
func (a *File) Append(tile []byte) (err error) {
	if len(tile) != TileSize {
		return ErrTileSize
	}

	f, err := a.fs.OpenFile(a.path, os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrap("smt: unable to open "+a.path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err = f.WriteAt(tile, HeaderSize+int64(a.header.Tiles)*TileSize); err != nil {
		return errors.Wrap("smt: unable to write tile", err)
	}

	header := a.header
	header.Tiles++
	if _, err = f.WriteAt(header.marshal(), 0); err != nil {
		return errors.Wrap("smt: unable to update header", err)
	}
	a.header = header
	return nil
}

// Tile reads the compressed tile at index i.
func (a *File) Tile(i int) ([]byte, error) {
	if i < 0 || i >= a.Tiles() {
		return nil, ErrNotExist
	}

	f, err := a.fs.Open(a.path)
	if err != nil {
		return nil, errors.Wrap("smt: unable to open "+a.path, err)
	}
	defer f.Close()

	tile := make([]byte, TileSize)
	if _, err = f.ReadAt(tile, HeaderSize+int64(i)*TileSize); err != nil {
		return nil, errors.Wrap("smt: unable to read tile", err)
	}
	return tile, nil
}
