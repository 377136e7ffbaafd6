package smf

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"os"
	"testing"

	"github.com/FireworkMC/smf/smt"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/yehan2002/is/v2"
)

func init() {
	filesystem = afero.NewMemMapFs()
}

type fileTest struct{}

func TestFile(t *testing.T) { is.Suite(t, &fileTest{}) }

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSettings() Settings {
	return Settings{Logger: testLogger(), ID: func() int32 { return 0x5eed }}
}

func newTestFile(is is.Is) *File {
	f, err := CreateFs(afero.NewMemMapFs(), "test.smf", false, testSettings())
	is(err == nil, "unexpected error while creating container: %s", err)
	return f
}

func makeAtlas(is is.Is, fs afero.Fs, path string, tiles int) {
	atlas, err := smt.Create(fs, path, true)
	is(err == nil, "unexpected error while creating atlas: %s", err)
	for i := 0; i < tiles; i++ {
		is(atlas.Append(make([]byte, smt.TileSize)) == nil, "unexpected error while appending tile")
	}
}

func (*fileTest) TestCreate(is is.Is) {
	fs := afero.NewMemMapFs()
	f, err := CreateFs(fs, "new.smf", false, testSettings())
	is(err == nil, "unexpected error while creating container: %s", err)
	is(len(f.Pending()) == 0, "a new container must not have pending sections: %v", f.Pending())
	is(f.Header().ID == 0x5eed, "id must come from the id source")

	info, err := fs.Stat("new.smf")
	is(err == nil, "container must exist")
	is(info.Size() == f.Layout().End, "file must end at the last section: %d != %d", info.Size(), f.Layout().End)

	_, err = CreateFs(fs, "new.smf", false, testSettings())
	is(err == ErrExists, "expected ErrExists, got %v", err)
	_, err = CreateFs(fs, "new.smf", true, testSettings())
	is(err == nil, "overwrite must succeed: %s", err)

	f, err = Create("default.smf", false)
	is(err == nil, "unexpected error while creating with default settings: %s", err)
	is(Test("default.smf"), "created container must have a signature")
	is(f.Close() == nil && f.Close() == nil, "close must be repeatable")
}

func (*fileTest) TestSignature(is is.Is) {
	fs := afero.NewMemMapFs()
	is(afero.WriteFile(fs, "junk.smf", bytes.Repeat([]byte{'x'}, 200), 0666) == nil, "unable to write test file")
	is(afero.WriteFile(fs, "short.smf", Signature[:8], 0666) == nil, "unable to write test file")

	_, err := OpenFs(fs, "junk.smf", testSettings())
	is(err == ErrSignature, "expected ErrSignature, got %v", err)
	_, err = OpenFs(fs, "short.smf", testSettings())
	is(err == ErrSignature, "expected ErrSignature for a short file, got %v", err)
	_, err = OpenFs(fs, "missing.smf", testSettings())
	is(err != nil, "opening a missing file must fail")

	is(!TestFs(fs, "junk.smf") && !TestFs(fs, "missing.smf"), "invalid files must fail the signature test")
}

func (*fileTest) TestRoundTrip(is is.Is) {
	fs := afero.NewMemMapFs()
	makeAtlas(is, fs, "a.smt", 3)
	makeAtlas(is, fs, "b.smt", 5)

	f, err := CreateFs(fs, "map.smf", false, testSettings())
	is(err == nil, "unexpected error while creating container: %s", err)
	is(f.SetSize(1, 2) == nil, "unexpected error while resizing")
	is(f.SetDepth(-50, 400) == nil, "unexpected error while setting depth")
	is(f.AddTileFile("a.smt") == nil, "unexpected error while adding tile file")
	is(f.AddTileFile("b.smt") == nil, "unexpected error while adding tile file")
	is(f.AddFeature("tree", 1, 2, 3, 4, 5) == nil, "unexpected error while adding feature")
	is(f.AddFeature("rock", 6, 7, 8, 9, 10) == nil, "unexpected error while adding feature")
	is(f.AddFeature("tree", 11, 12, 13, 14, 15) == nil, "unexpected error while adding feature")

	f.extras.Append(&UnknownHeader{Kind: 7, Payload: []byte{1, 2, 3, 4}})
	f.pending.mark(SectionExtraHeaders)
	f.relayout()

	is(f.Flush() == nil, "unexpected error while flushing")
	is(len(f.Pending()) == 0, "flush must write every pending section: %v", f.Pending())

	g, err := OpenFs(fs, "map.smf", testSettings())
	is(err == nil, "unexpected error while opening container: %s", err)
	is(len(g.Pending()) == 0, "a consistent container must not have pending sections: %v", g.Pending())

	is(cmp.Diff(f.Header(), g.Header()) == "", "header changed:\n%s", cmp.Diff(f.Header(), g.Header()))
	is(cmp.Diff(f.ExtraHeaders(), g.ExtraHeaders()) == "", "extension headers changed")
	is(cmp.Diff(f.TileFiles(), g.TileFiles()) == "", "tile index changed")
	is(cmp.Diff(f.Features(), g.Features()) == "", "features changed")
	is(cmp.Diff(f.FeatureTypes(), g.FeatureTypes()) == "", "feature types changed")
	is(cmp.Diff(f.Layout(), g.Layout()) == "", "layout changed")
	is(g.Tiles() == 8, "incorrect total tile count: %d", g.Tiles())
	is(g.Header().Floor == -50 && g.Header().Ceiling == 400, "incorrect depth")
}

func (*fileTest) TestTileFiles(is is.Is) {
	f := newTestFile(is)
	fs := f.settings.fs
	makeAtlas(is, fs, "a.smt", 2)
	is(afero.WriteFile(fs, "bad.smt", []byte("not an atlas"), 0666) == nil, "unable to write test file")

	is(f.AddTileFile("a.smt") == nil, "unexpected error while adding tile file")
	before := f.TileFiles()

	is(f.AddTileFile("missing.smt") != nil, "adding a missing atlas must fail")
	is(f.AddTileFile("bad.smt") != nil, "adding an invalid atlas must fail")

	// an atlas header claiming -1 tiles without any tile data
	neg := []byte("spring tilefile\x00")
	for _, v := range []uint32{1, 0xffffffff, smt.TileRes, smt.TileTypeDXT1} {
		neg = binary.LittleEndian.AppendUint32(neg, v)
	}
	is(afero.WriteFile(fs, "neg.smt", neg, 0666) == nil, "unable to write test file")
	is(f.AddTileFile("neg.smt") == smt.ErrInvalid, "an atlas with a negative tile count must be rejected")
	is(cmp.Diff(before, f.TileFiles()) == "", "failed adds must not change the index")

	is(f.AddTileFile(ClearTiles) == nil, "unexpected error while clearing")
	is(len(f.TileFiles()) == 0 && f.Tiles() == 0, "clear must empty the index")
	is(f.AddTileFile(ClearTiles) == nil, "clearing an empty index must succeed")
}

func (*fileTest) TestPending(is is.Is) {
	f := newTestFile(is)
	makeAtlas(is, f.settings.fs, "a.smt", 1)

	is(f.SetDepth(0, 100) == nil, "unexpected error")
	is.Equal(f.Pending(), []Section{SectionHeader}, "depth must only mark the header")
	is(f.Flush() == nil, "unexpected error while flushing")

	is(f.AddFeature("tree", 0, 0, 0, 0, 1) == nil, "unexpected error")
	is.Equal(f.Pending(), []Section{SectionFeatures}, "adding a feature must only mark the feature table")
	is(f.Flush() == nil, "unexpected error while flushing")

	is(f.AddTileFile("a.smt") == nil, "unexpected error")
	is.Equal(f.Pending(), []Section{SectionHeader, SectionTileIndex, SectionFeatures},
		"adding a tile file must mark the index and every section after it")
	is(f.Flush() == nil, "unexpected error while flushing")

	is(f.SetTileSize(16) == nil, "unexpected error")
	is(f.IsPending(SectionHeader) && f.IsPending(SectionFeatures), "tile size must mark the header and moved sections")
	is(!f.IsPending(SectionTileIndex), "the tile index does not move when the tile size changes")
	is(f.SetTileSize(0) == ErrInvalidSize, "invalid tile size must be rejected")
	is(f.Flush() == nil, "unexpected error while flushing")
	is(len(f.Pending()) == 0, "nothing must be pending after a flush")

	is(f.AddVegetation() == nil, "unexpected error")
	is(f.IsPending(SectionExtraHeaders), "adding vegetation must mark the extension headers")
	is(f.write(nil, Section(9)) == errUnknownSection, "unknown sections must be rejected")
}

func (*fileTest) TestPayloads(is is.Is) {
	f := newTestFile(is)
	makeAtlas(is, f.settings.fs, "a.smt", 4)
	is(f.SetSize(1, 1) == nil, "unexpected error while resizing")
	is(f.Rewrite() == nil, "unexpected error while rewriting")

	spec := f.Specs()
	height := image.NewGray16(image.Rect(0, 0, spec.Height.Width, spec.Height.Height))
	for i := 0; i < spec.Height.Width*spec.Height.Height; i++ {
		height.SetGray16(i%spec.Height.Width, i/spec.Height.Width, color.Gray16{Y: uint16(i * 7)})
	}
	metal := image.NewGray(image.Rect(0, 0, spec.Metal.Width, spec.Metal.Height))
	for i := range metal.Pix {
		metal.Pix[i] = byte(i)
	}
	tiles := NewTileMap(spec.Map.Width, spec.Map.Height)
	for i := range tiles.Tiles {
		tiles.Tiles[i] = uint32(i % 4)
	}

	is(f.WriteHeight(height) == nil, "unexpected error while writing heightmap")
	is(f.WriteMetal(metal) == nil, "unexpected error while writing metal map")
	is(f.WriteTileMap(tiles) == nil, "unexpected error while writing tile map")
	is(f.WriteTileMap(NewTileMap(1, 1)) == ErrTileMapSize, "tile map with the wrong size must be rejected")

	// moves every payload after the tile index
	is(f.AddTileFile("a.smt") == nil, "unexpected error while adding tile file")
	is(f.Flush() == nil, "unexpected error while flushing")

	f, err := OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil, "unexpected error while opening container: %s", err)

	b, err := f.Height()
	is(err == nil, "unexpected error while reading heightmap: %s", err)
	for i := 0; i < spec.Height.Width*spec.Height.Height; i++ {
		is(binary.LittleEndian.Uint16(b.Pix[i*2:]) == uint16(i*7), "incorrect height sample at %d", i)
	}

	b, err = f.Metal()
	is(err == nil, "unexpected error while reading metal map: %s", err)
	is.Equal(b.Pix, metal.Pix, "metal map changed after relocation")

	m, err := f.TileMap()
	is(err == nil, "unexpected error while reading tile map: %s", err)
	is.Equal(m.Tiles, tiles.Tiles, "tile map changed after relocation")

	b, err = f.Type()
	is(err == nil, "unexpected error while reading type map: %s", err)
	is.Equal(b.Pix, make([]byte, spec.Type.Bytes()), "unwritten type map must be zero")

	is(f.SetSize(2, 2) == nil, "unexpected error while resizing")
	_, err = f.Height()
	is(err == ErrNotWritten, "expected ErrNotWritten after resizing, got %v", err)
}

func (*fileTest) TestPreview(is is.Is) {
	f := newTestFile(is)
	b, err := f.Preview()
	is(err == nil, "unexpected error while reading preview: %s", err)
	is(b.Spec.Width == 1024 && b.Spec.Height == 1024 && b.Spec.Channels == 4, "incorrect preview spec")
	is.Equal(b.Pix, make([]byte, 1024*1024*4), "blank preview must decode to zero")

	src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}
	is(f.WritePreview(src) == nil, "unexpected error while writing preview")
	b, err = f.Preview()
	is(err == nil, "unexpected error while reading preview: %s", err)
	is(b.Pix[0] >= 0xF0 && b.Pix[3] == 0xFF, "white preview must decode to opaque white")
}

func (*fileTest) TestVegetation(is is.Is) {
	f := newTestFile(is)
	_, err := f.Vegetation()
	is(err == ErrNoVegetation, "expected ErrNoVegetation, got %v", err)
	heightPtr := f.Header().HeightPtr

	spec := f.Specs().Vegetation
	src := image.NewGray(image.Rect(0, 0, spec.Width, spec.Height))
	for i := range src.Pix {
		src.Pix[i] = byte(i % 251)
	}
	is(f.WriteVegetation(src) == nil, "unexpected error while writing vegetation")
	is(f.Header().HeightPtr == heightPtr+vegetationHeaderSize, "vegetation header must move the heightmap")
	is(len(f.Pending()) == 0, "adding vegetation must rewrite the file: %v", f.Pending())

	g, err := OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil, "unexpected error while opening container: %s", err)
	veg := g.ExtraHeaders().Vegetation()
	is(len(veg) == 1 && int64(veg[0].Ptr) == g.Layout().Payloads[0], "vegetation pointer must match the layout")

	b, err := g.Vegetation()
	is(err == nil, "unexpected error while reading vegetation: %s", err)
	is.Equal(b.Pix, src.Pix, "incorrect vegetation map")

	is(g.WriteVegetation(nil) == nil, "unexpected error while removing vegetation")
	_, err = g.Vegetation()
	is(err == ErrNoVegetation, "expected ErrNoVegetation after removal, got %v", err)
	is(g.Header().HeightPtr == heightPtr, "removing vegetation must restore the layout")
}

func (*fileTest) TestCorruptFeatures(is is.Is) {
	f := newTestFile(is)
	makeAtlas(is, f.settings.fs, "a.smt", 1)
	is(f.AddTileFile("a.smt") == nil, "unexpected error while adding tile file")
	is(f.AddFeature("tree", 1, 2, 3, 4, 5) == nil, "unexpected error while adding feature")
	is(f.Flush() == nil, "unexpected error while flushing")

	patch(is, f.settings.fs, "test.smf", int64(f.Header().FeaturesPtr)+4, 1000)

	g, err := OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil, "a corrupt feature table must not fail the open: %s", err)
	is(len(g.Features()) == 0 && len(g.FeatureTypes()) == 0, "a corrupt feature table must be ignored")
	is(len(g.TileFiles()) == 1, "the rest of the file must still load")
}

func (*fileTest) TestMismatchedPointers(is is.Is) {
	f := newTestFile(is)
	patch(is, f.settings.fs, "test.smf", 52, 0) // HeightPtr

	g, err := OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil, "unexpected error while opening container: %s", err)
	is(g.IsPending(SectionHeader), "a header that does not match the layout must be pending")
	is(g.Header().HeightPtr == HeaderSize, "header must be corrected in memory")

	is(g.Flush() == nil, "unexpected error while flushing")
	g, err = OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil && len(g.Pending()) == 0, "flushed container must be consistent")
}

func (*fileTest) TestOutOfRange(is is.Is) {
	f := newTestFile(is)
	fs := f.settings.fs
	is(afero.WriteFile(fs, "copy.smf", mustRead(is, fs, "test.smf"), 0666) == nil, "unable to write test file")

	patch(is, fs, "test.smf", 24, 1<<30) // Width
	patch(is, fs, "test.smf", 28, 1<<30) // Length
	_, err := OpenFs(fs, "test.smf", testSettings())
	is(err != nil && err != ErrSignature, "a map size outside the pointer range must be rejected, got %v", err)

	patch(is, fs, "test.smf", 24, 1<<15)
	patch(is, fs, "test.smf", 28, 1<<15)
	_, err = OpenFs(fs, "test.smf", testSettings())
	is(err != nil, "a layout past the pointer range must be rejected")

	patch(is, fs, "copy.smf", 52, 0x7ffffff0) // HeightPtr
	g, err := OpenFs(fs, "copy.smf", testSettings())
	is(err == nil, "unexpected error while opening container: %s", err)
	_, err = g.Height()
	is(err == ErrNotWritten, "a payload outside the file must not be read, got %v", err)

	is(g.Flush() == nil, "unexpected error while flushing")
	b, err := g.Height()
	is(err == nil, "unexpected error while reading heightmap: %s", err)
	is.Equal(b.Pix, make([]byte, g.Specs().Height.Bytes()), "a payload outside the file must be cleared")
}

func (*fileTest) TestShrink(is is.Is) {
	f := newTestFile(is)
	for i := 0; i < 20; i++ {
		is(f.AddFeature("tree", float32(i), 0, 0, 0, 1) == nil, "unexpected error while adding feature")
	}
	is(f.Flush() == nil, "unexpected error while flushing")

	is(f.ClearFeatures() == nil, "unexpected error while clearing features")
	is(f.Flush() == nil, "unexpected error while flushing")

	info, err := f.settings.fs.Stat("test.smf")
	is(err == nil, "unexpected error: %s", err)
	is(info.Size() == f.Layout().End, "file must end at the last section: %d != %d", info.Size(), f.Layout().End)

	g, err := OpenFs(f.settings.fs, "test.smf", testSettings())
	is(err == nil && len(g.Features()) == 0, "cleared features must stay cleared: %v", err)
}

func (*fileTest) TestClosed(is is.Is) {
	f := newTestFile(is)
	is(f.Close() == nil, "unexpected error while closing")
	is(f.Flush() == ErrClosed, "flush must fail after close")
	is(f.AddFeature("tree", 0, 0, 0, 0, 0) == ErrClosed, "mutations must fail after close")
	_, err := f.Height()
	is(err == ErrClosed, "reads must fail after close")
}

func (*fileTest) TestInfo(is is.Is) {
	f := newTestFile(is)
	is(f.AddFeature("tree", 0, 0, 0, 0, 1) == nil, "unexpected error")
	info := f.Info()
	for _, s := range []string{"test.smf", "HeightPtr:", "MiniPtr:", "1024x1024:4 DXT1", "Features: 1", "Pending: [features]"} {
		is(bytes.Contains([]byte(info), []byte(s)), "info must contain %q:\n%s", s, info)
	}
}

// patch overwrites the uint32 at off.
func patch(is is.Is, fs afero.Fs, path string, off int64, v uint32) {
	file, err := fs.OpenFile(path, os.O_RDWR, 0666)
	is(err == nil, "unable to open test file: %s", err)
	defer file.Close()
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err = file.WriteAt(b[:], off)
	is(err == nil, "unable to patch test file: %s", err)
}

func mustRead(is is.Is, fs afero.Fs, path string) []byte {
	b, err := afero.ReadFile(fs, path)
	is(err == nil, "unable to read test file: %s", err)
	return b
}
