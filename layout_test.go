package smf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yehan2002/is/v2"
)

type layoutTest struct{}

func TestLayout(t *testing.T) { is.Suite(t, &layoutTest{}) }

func testSizes(width, length, tileSize int, extras ExtraHeaders) Sizes {
	specs := DeriveSpecs(width, length, tileSize)
	var tiles TileIndex
	tiles.Add(10, "a.smt")
	var features FeatureTable
	features.Add("tree", 1, 2, 3, 4, 5)

	s := Sizes{
		Header:    HeaderSize,
		Extras:    extras.Size(),
		Height:    specs.Height.Bytes(),
		Type:      specs.Type.Bytes(),
		TileIndex: tiles.Size(),
		Map:       specs.Map.Bytes(),
		Preview:   699048,
		Metal:     specs.Metal.Bytes(),
		Features:  features.Size(),
	}
	for range extras.Vegetation() {
		s.Payloads = append(s.Payloads, specs.Vegetation.Bytes())
	}
	return s
}

func (*layoutTest) TestMonotonic(is is.Is) {
	for _, size := range []int{64, 128, 256, 512, 1024} {
		for _, tileSize := range []int{8, 16, 32} {
			s := testSizes(size, size*2, tileSize, ExtraHeaders{&VegetationHeader{}, &NullHeader{}})
			l := ComputeLayout(s)

			offsets := []int64{l.Height, l.Type, l.Tiles, l.Map, l.Preview, l.Metal, l.Features, l.Payloads[0], l.End}
			spans := []int64{s.Height, s.Type, s.TileIndex, s.Map, s.Preview, s.Metal, s.Features, s.Payloads[0]}

			is(l.Height == s.Header+s.Extras, "heightmap must follow the extension headers")
			for i := 1; i < len(offsets); i++ {
				is(offsets[i] > offsets[i-1], "offsets must be strictly increasing: %v", offsets)
				is(offsets[i-1]+spans[i-1] == offsets[i], "section %d overlaps or leaves a gap", i-1)
			}
		}
	}
}

func (*layoutTest) TestIdempotent(is is.Is) {
	s := testSizes(256, 256, 32, ExtraHeaders{&VegetationHeader{}})
	a, b := ComputeLayout(s), ComputeLayout(s)
	is(cmp.Diff(a, b) == "", "layouts differ:\n%s", cmp.Diff(a, b))
}

func (*layoutTest) TestSetSize(is is.Is) {
	f := newTestFile(is)
	is(f.SetSize(4, 4) == nil, "unexpected error while resizing")

	h := f.Header()
	is(h.Width == 256 && h.Length == 256, "incorrect map size: %dx%d", h.Width, h.Length)
	is(h.HeightPtr == HeaderSize, "incorrect height pointer: %d", h.HeightPtr)
	is(h.TypePtr == HeaderSize+257*257*2, "incorrect type pointer: %d", h.TypePtr)
	is(f.Specs().Map.Width == 64, "incorrect tile map width: %d", f.Specs().Map.Width)

	is(f.SetSize(0, 4) == ErrInvalidSize, "zero size must be rejected")
	is(f.SetSize(1<<30, 1) == ErrTooLarge, "oversized maps must be rejected")
	is(f.Header().Width == 256, "a rejected size must not change the header")
}

func (*layoutTest) TestVegetationShift(is is.Is) {
	without := ComputeLayout(testSizes(128, 128, 32, nil))
	with := ComputeLayout(testSizes(128, 128, 32, ExtraHeaders{&VegetationHeader{}}))

	is(with.Height-without.Height == vegetationHeaderSize, "vegetation header must shift the heightmap by its size")
	is(len(with.Payloads) == 1, "vegetation payload must be placed")
	is(with.Payloads[0] == with.Features+testSizes(128, 128, 32, nil).Features, "vegetation must follow the feature table")
}

func (*layoutTest) TestSpecs(is is.Is) {
	s := DeriveSpecs(256, 128, 32)
	is(s.Height.Width == 257 && s.Height.Height == 129, "incorrect height spec")
	is(s.Height.Bytes() == 257*129*2, "incorrect height size")
	is(s.Type.Width == 128 && s.Type.Height == 64, "incorrect type spec")
	is(s.Map.Width == 64 && s.Map.Height == 32 && s.Map.Bytes() == 64*32*4, "incorrect map spec")
	is(s.Preview.Bytes() == 1024*1024*4, "incorrect preview spec")
	is(s.Metal == s.Type, "metal and type maps must have the same spec")
	is(s.Vegetation.Width == 64 && s.Vegetation.Height == 32, "incorrect vegetation spec")
}
