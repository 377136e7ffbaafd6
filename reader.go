package smf

import (
	"io"

	"github.com/FireworkMC/smf/imagebuf"
	"github.com/yehan2002/errors"
)

// Height reads the heightmap.
// The returned buffer is owned by the caller.
func (f *File) Height() (*imagebuf.Buffer, error) { return f.readImage(payloadHeight, f.specs.Height) }

// Type reads the terrain type map.
func (f *File) Type() (*imagebuf.Buffer, error) { return f.readImage(payloadType, f.specs.Type) }

// Metal reads the metal density map.
func (f *File) Metal() (*imagebuf.Buffer, error) { return f.readImage(payloadMetal, f.specs.Metal) }

// Vegetation reads the vegetation density map.
// If the container has no vegetation extension header ErrNoVegetation is returned.
func (f *File) Vegetation() (*imagebuf.Buffer, error) {
	if len(f.extras.Vegetation()) == 0 {
		return nil, ErrNoVegetation
	}
	return f.readImage(fixedPayloads, f.specs.Vegetation)
}

// TileMap reads the tile map.
func (f *File) TileMap() (*TileMap, error) {
	buf, err := f.readImage(payloadMap, f.specs.Map)
	if err != nil {
		return nil, err
	}
	return tileMapFrom(f.specs.Map.Width, f.specs.Map.Height, buf.Pix), nil
}

// Preview reads and decompresses the top level of the preview.
func (f *File) Preview() (b *imagebuf.Buffer, err error) {
	err = f.view(func(r io.ReaderAt, size int64) (err error) {
		off := f.source(payloadPreview).off
		b, err = f.codec.Decode(io.NewSectionReader(r, off, size-off))
		return errors.Wrap("smf: unable to read preview", err)
	})
	return b, err
}

func (f *File) readImage(idx int, spec imagebuf.Spec) (b *imagebuf.Buffer, err error) {
	err = f.view(func(r io.ReaderAt, size int64) error {
		e := f.source(idx)
		if e.size != spec.Bytes() || e.off < 0 || e.off+e.size > size {
			return ErrNotWritten
		}

		b = imagebuf.New(spec)
		if n, err := r.ReadAt(b.Pix, e.off); n != len(b.Pix) {
			b = nil
			return errors.Wrap("smf: unable to read payload", err)
		}
		return nil
	})
	return b, err
}

// source returns where payload idx is stored.
// This is the persisted extent if it is still valid, otherwise the extent in the current layout.
func (f *File) source(idx int) extent {
	if idx < len(f.disk) && f.disk[idx].size >= 0 {
		return f.disk[idx]
	}
	return f.layout.extents(&f.sizes)[idx]
}
