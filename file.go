package smf

import (
	"bufio"
	"io"
	"math"
	"os"

	"github.com/FireworkMC/smf/preview"
	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

// File a map container.
// The backing file is opened for every operation and closed before it returns.
// File is not safe for concurrent use.
type File struct {
	settings Settings
	path     string
	codec    *preview.Codec

	header   Header
	extras   ExtraHeaders
	tiles    TileIndex
	features FeatureTable

	specs  Specs
	sizes  Sizes
	layout Layout

	// disk the extents of every payload as last written to the file.
	// Payloads whose extent differs from the current layout are relocated by Rewrite.
	disk    []extent
	pending pending

	closed bool
}

// Create creates a new container at path.
// If the file exists and overwrite is not set, ErrExists is returned.
func Create(path string, overwrite bool, opt ...Settings) (*File, error) {
	return CreateFs(filesystem, path, overwrite, opt...)
}

// CreateFs creates a new container at path on the given filesystem.
// The new container has the default size and an empty extension header chain, tile index and feature table.
// Every payload is zero filled and the preview is blank.
func CreateFs(fs afero.Fs, path string, overwrite bool, opt ...Settings) (*File, error) {
	if exists, err := afero.Exists(fs, path); err != nil {
		return nil, errors.Wrap("smf: unable to create "+path, err)
	} else if exists && !overwrite {
		return nil, ErrExists
	}

	settings, err := getSettings(opt, fs)
	if err != nil {
		return nil, err
	}

	f := newFile(path, settings, newHeader(settings.ID()))
	f.relayout()
	f.pending.markAll()

	err = f.updateFlags(os.O_RDWR|os.O_CREATE|os.O_TRUNC, func(w writer) error {
		return f.rewrite(w)
	})
	if err != nil {
		return nil, err
	}

	settings.Logger.Debugf("smf: created %s", path)
	return f, nil
}

// Open opens the container at path.
func Open(path string, opt ...Settings) (*File, error) {
	return OpenFs(filesystem, path, opt...)
}

// OpenFs opens the container at path on the given filesystem.
// The header, extension headers, tile index and feature table are read eagerly.
// If the file does not start with the container signature, ErrSignature is returned.
// A feature table that does not fit in the file is ignored with a warning.
func OpenFs(fs afero.Fs, path string, opt ...Settings) (f *File, err error) {
	settings, err := getSettings(opt, fs)
	if err != nil {
		return nil, err
	}

	f = newFile(path, settings, Header{})
	if err = f.view(f.read); err != nil {
		return nil, err
	}
	return f, nil
}

func newFile(path string, settings Settings, header Header) *File {
	return &File{
		settings: settings,
		path:     path,
		codec:    preview.New(settings.Codec, settings.Logger),
		header:   header,
		pending:  newPending(),
	}
}

// read populates the container from r.
func (f *File) read(r io.ReaderAt, size int64) (err error) {
	buf := make([]byte, HeaderSize)
	if n, _ := r.ReadAt(buf, 0); n != HeaderSize {
		return ErrSignature
	}
	if err = f.header.unmarshal(buf); err != nil {
		return err
	}
	if !f.header.valid() {
		return errors.CauseStr(ErrCorrupted, "invalid header")
	}
	log := f.settings.Logger
	if f.header.Version != Version {
		log.Warnf("smf: %s has unsupported version %d", f.path, f.header.Version)
	}

	extras := io.NewSectionReader(r, HeaderSize, size-HeaderSize)
	if f.extras, err = readExtraHeaders(extras, int(f.header.ExtraHeaders), log); err != nil {
		return err
	}

	tilesPtr := int64(f.header.TilesPtr)
	if tilesPtr < HeaderSize || tilesPtr > size {
		return errors.CauseStr(ErrCorrupted, "tile index is outside the file")
	}
	tiles := bufio.NewReader(io.NewSectionReader(r, tilesPtr, size-tilesPtr))
	if f.tiles, err = readTileIndex(tiles, log); err != nil {
		return err
	}

	if f.features, err = readFeatures(r, int64(f.header.FeaturesPtr), size); err != nil {
		log.Warnf("smf: %s: ignoring feature data: %s", f.path, err)
		f.features = FeatureTable{}
	}

	// the layout as declared by the file
	f.layout = Layout{
		Height:   int64(f.header.HeightPtr),
		Type:     int64(f.header.TypePtr),
		Tiles:    tilesPtr,
		Map:      tilesPtr + f.tiles.Size(),
		Preview:  int64(f.header.MiniPtr),
		Metal:    int64(f.header.MetalPtr),
		Features: int64(f.header.FeaturesPtr),
	}
	for _, v := range f.extras.Vegetation() {
		f.layout.Payloads = append(f.layout.Payloads, int64(v.Ptr))
	}
	f.resize()
	f.disk = f.layout.extents(&f.sizes)

	f.relayout()
	if f.layout.End > math.MaxInt32 {
		return errors.CauseStr(ErrCorrupted, "map size is out of range")
	}
	if pending := f.pending.list(); len(pending) != 0 {
		log.Warnf("smf: %s: section offsets do not match the layout, pending %v", f.path, pending)
	}

	log.Debugf("smf: opened %s", f.path)
	return nil
}

// resize derives the section specs and sizes from the current content.
func (f *File) resize() {
	f.specs = DeriveSpecs(int(f.header.Width), int(f.header.Length), int(f.header.TileSize))
	f.sizes = Sizes{
		Header:    HeaderSize,
		Extras:    f.extras.Size(),
		Height:    f.specs.Height.Bytes(),
		Type:      f.specs.Type.Bytes(),
		TileIndex: f.tiles.Size(),
		Map:       f.specs.Map.Bytes(),
		Preview:   f.codec.ChainSize(),
		Metal:     f.specs.Metal.Bytes(),
		Features:  f.features.Size(),
	}
	for range f.extras.Vegetation() {
		f.sizes.Payloads = append(f.sizes.Payloads, f.specs.Vegetation.Bytes())
	}
}

// relayout recomputes the layout from the current content and marks every
// structural section whose bytes changed as a result.
// This must be called after every mutation.
func (f *File) relayout() {
	prev := f.layout
	f.resize()
	f.layout = ComputeLayout(f.sizes)

	header := f.header
	f.header.apply(&f.layout, len(f.extras))
	if header != f.header {
		f.pending.mark(SectionHeader)
	}

	for i, v := range f.extras.Vegetation() {
		if ptr := int32(f.layout.Payloads[i]); v.Ptr != ptr {
			v.Ptr = ptr
			f.pending.mark(SectionExtraHeaders)
		}
	}

	if prev.Tiles != f.layout.Tiles {
		f.pending.mark(SectionTileIndex)
	}
	if prev.Features != f.layout.Features {
		f.pending.mark(SectionFeatures)
	}
}

// relocating reports whether any payload is stored at a different extent than the current layout.
func (f *File) relocating() bool {
	current := f.layout.extents(&f.sizes)
	if len(current) != len(f.disk) {
		return true
	}
	for i := range current {
		if current[i] != f.disk[i] {
			return true
		}
	}
	return false
}

// overwritten drops every persisted payload other than keep that overlaps e.
func (f *File) overwritten(e extent, keep int) {
	for i, d := range f.disk {
		if i != keep && d.size > 0 && d.off < e.off+e.size && e.off < d.off+d.size {
			f.disk[i] = extent{off: d.off, size: -1}
		}
	}
}

// Close closes the container.
// This function can be called multiple times.
// Every other operation on a closed container returns ErrClosed.
// Pending sections are not written, call Flush first to persist them.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if pending := f.pending.list(); len(pending) != 0 {
		f.settings.Logger.Debugf("smf: closing %s with unwritten sections %v", f.path, pending)
	}
	f.closed = true
	return nil
}

// Path the path of the container.
func (f *File) Path() string { return f.path }

// Header returns a copy of the header.
func (f *File) Header() Header { return f.header }

// Layout returns the offsets of every section at the current content.
func (f *File) Layout() Layout {
	l := f.layout
	l.Payloads = append([]int64(nil), l.Payloads...)
	return l
}

// Specs returns the pixel layout of every image payload.
func (f *File) Specs() Specs { return f.specs }

// ExtraHeaders returns the extension header chain.
// The returned headers must not be modified.
func (f *File) ExtraHeaders() ExtraHeaders { return append(ExtraHeaders(nil), f.extras...) }

// TileFiles returns the entries of the tile index.
func (f *File) TileFiles() []TileFile { return append([]TileFile(nil), f.tiles.Files...) }

// Tiles the total number of tiles referenced by the tile index.
func (f *File) Tiles() uint32 { return f.tiles.Tiles() }

// Features returns the placed features.
func (f *File) Features() []Feature { return append([]Feature(nil), f.features.Features...) }

// FeatureTypes returns the feature type names.
func (f *File) FeatureTypes() []string { return append([]string(nil), f.features.Types...) }

// FeaturesCSV returns the features as CSV with a NAME,X,Y,Z,ANGLE,SCALE header.
func (f *File) FeaturesCSV() string { return f.features.CSV() }

// IsPending reports whether s has been modified in memory but not written.
func (f *File) IsPending(s Section) bool { return f.pending.test(s) }

// Pending returns every section that has been modified in memory but not written, in file order.
func (f *File) Pending() []Section { return f.pending.list() }
