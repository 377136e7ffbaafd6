package smf

import (
	"image"
	"io"
	"math"

	"github.com/FireworkMC/smf/imagebuf"
	"github.com/valyala/bytebufferpool"
	"github.com/yehan2002/errors"
)

// SetSize sets the map size in units of [MapUnit] elevation grid squares.
// If the resulting file would exceed the range of the section pointers, the size is unchanged.
func (f *File) SetSize(width, length int) error {
	if f.closed {
		return ErrClosed
	}
	if width <= 0 || length <= 0 {
		return ErrInvalidSize
	}

	w, l := int64(width)*MapUnit, int64(length)*MapUnit
	if w > math.MaxInt32 || l > math.MaxInt32 {
		return ErrTooLarge
	}
	if int64(f.header.Width) == w && int64(f.header.Length) == l {
		return nil
	}

	header := f.header
	f.header.Width, f.header.Length = int32(w), int32(l)
	if !f.header.valid() {
		f.header = header
		return ErrTooLarge
	}
	f.relayout()
	if f.layout.End > math.MaxInt32 {
		f.header = header
		f.relayout()
		return ErrTooLarge
	}
	f.pending.mark(SectionHeader)
	return nil
}

// SetDepth sets the elevation range in meters.
func (f *File) SetDepth(floor, ceiling float32) error {
	if f.closed {
		return ErrClosed
	}
	if f.header.Floor != floor || f.header.Ceiling != ceiling {
		f.header.Floor, f.header.Ceiling = floor, ceiling
		f.pending.mark(SectionHeader)
	}
	return nil
}

// SetTileSize sets the size of a tile in texels.
// This changes the dimensions of the tile map.
func (f *File) SetTileSize(size int) error {
	if f.closed {
		return ErrClosed
	}
	if size <= 0 || size > math.MaxInt32 {
		return ErrInvalidSize
	}
	if int(f.header.TileSize) != size {
		f.header.TileSize = int32(size)
		f.pending.mark(SectionHeader)
		f.relayout()
	}
	return nil
}

// SetSquare sets the size of an elevation grid square and the number of texels per square.
func (f *File) SetSquare(size, texels int) error {
	if f.closed {
		return ErrClosed
	}
	if size <= 0 || texels <= 0 || size > math.MaxInt32 || texels > math.MaxInt32 {
		return ErrInvalidSize
	}
	if int(f.header.SquareSize) != size || int(f.header.SquareTexels) != texels {
		f.header.SquareSize, f.header.SquareTexels = int32(size), int32(texels)
		f.pending.mark(SectionHeader)
	}
	return nil
}

// AddTileFile appends the tile atlas at name to the tile index.
// The tile count is read from the atlas. If the atlas cannot be opened the index is unchanged.
// Passing [ClearTiles] empties the index instead.
func (f *File) AddTileFile(name string) error {
	if f.closed {
		return ErrClosed
	}

	if name == ClearTiles {
		f.tiles.Clear()
	} else {
		atlas, err := f.settings.Atlases.Open(name)
		if err != nil {
			return errors.Wrap("smf: unable to add tile file", err)
		}
		f.tiles.Add(uint32(atlas.Tiles()), name)
	}

	f.pending.mark(SectionTileIndex)
	f.relayout()
	return nil
}

// AddFeature places a feature of the named type, registering the type if it is new.
func (f *File) AddFeature(name string, x, y, z, rotation, scale float32) error {
	if f.closed {
		return ErrClosed
	}
	f.features.Add(name, x, y, z, rotation, scale)
	f.pending.mark(SectionFeatures)
	f.relayout()
	return nil
}

// ReplaceFeatures replaces the feature table with the given records.
// Each record is NAME,X,Y,Z,ANGLE,SCALE. Malformed records are skipped with a warning
// and the number skipped is returned.
// If builtin is set the type table is seeded with [BuiltinFeatureTypes].
func (f *File) ReplaceFeatures(records [][]string, builtin bool) (skipped int, err error) {
	if f.closed {
		return 0, ErrClosed
	}
	skipped = f.features.Replace(records, builtin, f.settings.Logger)
	f.settings.Logger.Infof("smf: %s: %d feature types, %d features, %d records skipped",
		f.path, len(f.features.Types), len(f.features.Features), skipped)
	f.pending.mark(SectionFeatures)
	f.relayout()
	return skipped, nil
}

// ClearFeatures removes every feature and feature type.
func (f *File) ClearFeatures() error {
	if f.closed {
		return ErrClosed
	}
	f.features.Clear()
	f.pending.mark(SectionFeatures)
	f.relayout()
	return nil
}

// AddVegetation adds a vegetation extension header if the container does not have one.
// The vegetation payload is stored after the feature table.
func (f *File) AddVegetation() error {
	if f.closed {
		return ErrClosed
	}
	if len(f.extras.Vegetation()) == 0 {
		f.extras.Append(&VegetationHeader{})
		f.pending.mark(SectionHeader, SectionExtraHeaders)
		f.relayout()
	}
	return nil
}

// RemoveVegetation removes every vegetation extension header.
func (f *File) RemoveVegetation() error {
	if f.closed {
		return ErrClosed
	}
	if f.extras.Remove(ExtraVegetation) != 0 {
		f.pending.mark(SectionHeader, SectionExtraHeaders)
		f.relayout()
	}
	return nil
}

// WriteHeader writes the fixed header.
func (f *File) WriteHeader() error { return f.writeSection(SectionHeader) }

// WriteExtraHeaders writes the extension header chain.
func (f *File) WriteExtraHeaders() error { return f.writeSection(SectionExtraHeaders) }

// WriteTileIndex writes the tile index.
func (f *File) WriteTileIndex() error { return f.writeSection(SectionTileIndex) }

// WriteFeatures writes the feature table.
func (f *File) WriteFeatures() error { return f.writeSection(SectionFeatures) }

func (f *File) writeSection(s Section) error {
	return f.update(func(w writer) error {
		f.relayout()
		return f.write(w, s)
	})
}

// write writes a single structural section at its current offset.
// Payloads stored in the written range are dropped.
func (f *File) write(w io.WriterAt, s Section) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var off int64
	switch s {
	case SectionHeader:
		buf.B = append(buf.B, f.header.marshal()...)
	case SectionExtraHeaders:
		off = HeaderSize
		buf.B = append(buf.B, f.extras.marshal()...)
	case SectionTileIndex:
		off = f.layout.Tiles
		buf.B = f.tiles.appendTo(buf.B)
	case SectionFeatures:
		off = f.layout.Features
		buf.B = f.features.appendTo(buf.B)
	default:
		return errUnknownSection
	}

	f.settings.Logger.Debugf("smf: writing %s at %#x (%d bytes)", s, off, buf.Len())
	if _, err := w.WriteAt(buf.B, off); err != nil {
		return errors.Wrap("smf: unable to write "+s.String(), err)
	}

	f.overwritten(extent{off: off, size: int64(buf.Len())}, -1)
	f.pending.clear(s)
	return nil
}

// Flush writes every pending section.
// If any payload is no longer stored at its offset in the current layout, the whole file is rewritten, see [File.Rewrite].
func (f *File) Flush() error {
	return f.update(func(w writer) error {
		f.relayout()
		if f.relocating() {
			return f.rewrite(w)
		}

		for _, s := range f.pending.list() {
			if err := f.write(w, s); err != nil {
				return err
			}
		}
		return errors.Wrap("smf: unable to resize file", w.Truncate(f.layout.End))
	})
}

// Rewrite rewrites the whole file at the current layout.
// Every payload is moved to its current offset. Payloads whose size changed since they
// were written are zero filled, an unwritten preview is replaced with a blank one.
// The file is truncated to the end of the last section and no section is pending afterwards.
func (f *File) Rewrite() error { return f.update(f.rewrite) }

func (f *File) rewrite(w writer) error {
	f.relayout()
	log := f.settings.Logger
	current := f.layout.extents(&f.sizes)

	info, err := w.Stat()
	if err != nil {
		return errors.Wrap("smf: unable to stat "+f.path, err)
	}

	data := make([][]byte, len(current))
	for i, e := range current {
		if i >= len(f.disk) || f.disk[i].size != e.size || e.size == 0 {
			continue
		}
		if d := f.disk[i]; d.off < 0 || d.off+d.size > info.Size() {
			log.Warnf("smf: %s: payload %d is outside the file and will be cleared", f.path, i)
			continue
		}
		buf := make([]byte, e.size)
		if n, err := w.ReadAt(buf, f.disk[i].off); n != len(buf) {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return errors.Wrap("smf: unable to read payload", err)
			}
			log.Warnf("smf: %s: payload %d is truncated and will be cleared", f.path, i)
			continue
		}
		data[i] = buf
	}

	log.Debugf("smf: rewriting %s (%d bytes)", f.path, f.layout.End)
	if err := w.Truncate(f.layout.End); err != nil {
		return errors.Wrap("smf: unable to resize file", err)
	}

	for _, s := range []Section{SectionHeader, SectionExtraHeaders} {
		if err := f.write(w, s); err != nil {
			return err
		}
	}

	for i, e := range current {
		var err error
		switch {
		case data[i] != nil:
			_, err = w.WriteAt(data[i], e.off)
		case i == payloadPreview:
			err = f.codec.Encode(&writeAtWrapper{w: w, off: e.off}, nil)
		default:
			err = writeZeros(w, e.off, e.size)
		}
		if err != nil {
			return errors.Wrap("smf: unable to write payload", err)
		}
	}

	for _, s := range []Section{SectionTileIndex, SectionFeatures} {
		if err := f.write(w, s); err != nil {
			return err
		}
	}

	f.disk = current
	f.pending.clearAll()
	return nil
}

// WriteHeight writes the heightmap. src is conformed to a single 16 bit channel at the size of the map.
// If src is nil the heightmap is zero filled.
func (f *File) WriteHeight(src image.Image) error {
	return f.writeImage(payloadHeight, func() imagebuf.Spec { return f.specs.Height }, src)
}

// WriteType writes the terrain type map. If src is nil the map is zero filled.
func (f *File) WriteType(src image.Image) error {
	return f.writeImage(payloadType, func() imagebuf.Spec { return f.specs.Type }, src)
}

// WriteMetal writes the metal density map. If src is nil the map is zero filled.
func (f *File) WriteMetal(src image.Image) error {
	return f.writeImage(payloadMetal, func() imagebuf.Spec { return f.specs.Metal }, src)
}

func (f *File) writeImage(idx int, spec func() imagebuf.Spec, src image.Image) error {
	return f.update(func(w writer) error {
		f.relayout()
		return f.writePayload(w, idx, spec(), src)
	})
}

func (f *File) writePayload(w io.WriterAt, idx int, spec imagebuf.Spec, src image.Image) (err error) {
	e := f.layout.extents(&f.sizes)[idx]
	f.settings.Logger.Debugf("smf: writing payload %d at %#x (%dx%d)", idx, e.off, spec.Width, spec.Height)

	if src == nil {
		err = writeZeros(w, e.off, e.size)
	} else {
		buf := imagebuf.Conform(src, spec)
		_, err = w.WriteAt(buf.Pix, e.off)
		buf.Release()
	}
	if err != nil {
		return errors.Wrap("smf: unable to write payload", err)
	}

	f.place(idx, e)
	return nil
}

// place records that payload idx was written at e.
func (f *File) place(idx int, e extent) {
	f.overwritten(e, idx)
	for len(f.disk) <= idx {
		f.disk = append(f.disk, extent{size: -1})
	}
	f.disk[idx] = e
}

// WriteTileMap writes the tile map. The dimensions of m must match the tile map spec of the container.
func (f *File) WriteTileMap(m *TileMap) error {
	return f.update(func(w writer) error {
		f.relayout()
		if m.Width != f.specs.Map.Width || m.Height != f.specs.Map.Height || len(m.Tiles) != m.Width*m.Height {
			return ErrTileMapSize
		}

		e := f.layout.extents(&f.sizes)[payloadMap]
		f.settings.Logger.Debugf("smf: writing tile map at %#x (%dx%d)", e.off, m.Width, m.Height)
		if _, err := w.WriteAt(m.bytes(), e.off); err != nil {
			return errors.Wrap("smf: unable to write tile map", err)
		}
		f.place(payloadMap, e)
		return nil
	})
}

// WritePreview writes the preview mip chain generated from src.
// If src is nil a blank preview is written.
func (f *File) WritePreview(src image.Image) error {
	return f.update(func(w writer) error {
		f.relayout()
		e := f.layout.extents(&f.sizes)[payloadPreview]
		if err := f.codec.Encode(&writeAtWrapper{w: w, off: e.off}, src); err != nil {
			return err
		}
		f.place(payloadPreview, e)
		return nil
	})
}

// WriteVegetation writes the vegetation density map.
// If the container has no vegetation extension header one is added and the file is rewritten first.
// If src is nil the vegetation header is removed and the file is rewritten.
func (f *File) WriteVegetation(src image.Image) error {
	return f.update(func(w writer) error {
		if src == nil {
			if f.extras.Remove(ExtraVegetation) == 0 {
				return nil
			}
			f.pending.mark(SectionHeader, SectionExtraHeaders)
			return f.rewrite(w)
		}

		if len(f.extras.Vegetation()) == 0 {
			f.extras.Append(&VegetationHeader{})
			f.pending.mark(SectionHeader, SectionExtraHeaders)
			if err := f.rewrite(w); err != nil {
				return err
			}
		}

		f.relayout()
		return f.writePayload(w, fixedPayloads, f.specs.Vegetation, src)
	})
}
