package dxt

import (
	"bytes"
	"testing"

	"github.com/yehan2002/is/v2"
)

type dxtTest struct{}

func TestDXT1(t *testing.T) { is.Suite(t, &dxtTest{}) }

func (*dxtTest) TestStorageSize(is is.Is) {
	var d DXT1
	is(d.StorageSize(4, 4) == 8, "incorrect size for a single block")
	is(d.StorageSize(1024, 1024) == 1024*1024/2, "incorrect size for 1024x1024")
	is(d.StorageSize(5, 5) == 4*8, "partial blocks must be rounded up")
}

func (*dxtTest) TestZero(is is.Is) {
	var d DXT1
	src := make([]byte, 16*16*4)
	out := d.Decompress(d.Compress(src, 16, 16), 16, 16)
	is.Equal(out, src, "transparent black did not survive a round trip")
}

func (*dxtTest) TestSolid(is is.Is) {
	var d DXT1
	for _, px := range [][4]byte{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {255, 255, 255, 255}, {0, 0, 0, 255}} {
		src := bytes.Repeat(px[:], 8*8)
		out := d.Decompress(d.Compress(src, 8, 8), 8, 8)
		is.Equal(out, src, "solid colour %v changed after a round trip", px)
	}
}

func (*dxtTest) TestGradient(is is.Is) {
	var d DXT1
	src := make([]byte, 4*4*4)
	for i := 0; i < 16; i++ {
		v := byte(i * 16)
		copy(src[i*4:], []byte{v, v, v, 255})
	}
	out := d.Decompress(d.Compress(src, 4, 4), 4, 4)
	for i := 0; i < 16; i++ {
		diff := int(out[i*4]) - int(src[i*4])
		if diff < 0 {
			diff = -diff
		}
		is(diff <= 48, "pixel %d is too far from the source: got %d want %d", i, out[i*4], src[i*4])
		is(out[i*4+3] == 255, "opaque pixel %d became transparent", i)
	}
}

func (*dxtTest) TestMixedAlpha(is is.Is) {
	var d DXT1
	src := bytes.Repeat([]byte{200, 100, 50, 255}, 16)
	copy(src[5*4:], []byte{0, 0, 0, 0})
	out := d.Decompress(d.Compress(src, 4, 4), 4, 4)
	is.Equal(out[5*4:6*4], []byte{0, 0, 0, 0}, "transparent pixel not preserved")
	is(out[3] == 255, "opaque pixel became transparent")
}

func (*dxtTest) TestShortInput(is is.Is) {
	var d DXT1
	out := d.Decompress(make([]byte, 8), 8, 8)
	is(len(out) == 8*8*4, "output must always cover the whole image")
}
