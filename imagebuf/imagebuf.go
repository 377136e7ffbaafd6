// Package imagebuf holds raw pixel buffers with an explicit layout and the
// conversions needed to move arbitrary images in and out of them.
package imagebuf

import (
	"image"

	"github.com/yehan2002/fastbytes/v2"
	"golang.org/x/image/draw"
)

// Format the storage format of a single channel sample.
type Format uint8

// supported formats
const (
	UInt8 Format = 1 + iota
	UInt16
	UInt32
)

// Size the size of a single sample in bytes.
func (f Format) Size() int {
	switch f {
	case UInt8:
		return 1
	case UInt16:
		return 2
	case UInt32:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case UInt8:
		return "UINT8"
	case UInt16:
		return "UINT16"
	case UInt32:
		return "UINT32"
	default:
		return "unknown"
	}
}

// Spec the dimensions and sample layout of an image.
type Spec struct {
	Width    int
	Height   int
	Channels int
	Format   Format
}

// Bytes the number of bytes needed to store an image with this spec.
func (s Spec) Bytes() int64 {
	return int64(s.Width) * int64(s.Height) * int64(s.Channels) * int64(s.Format.Size())
}

// Buffer a raw image.
// Multi-byte samples are stored little endian, channels are interleaved.
type Buffer struct {
	Spec Spec
	Pix  []byte
}

// New returns a zeroed buffer for the given spec.
func New(spec Spec) *Buffer { return &Buffer{Spec: spec, Pix: make([]byte, spec.Bytes())} }

// Release drops the pixel data held by the buffer.
func (b *Buffer) Release() { b.Pix = nil }

// Image returns the buffer as an image.Image.
// Only 1 and 4 channel 8 bit and 1 channel 16 bit buffers can be represented,
// anything else returns nil.
func (b *Buffer) Image() image.Image {
	rect := image.Rect(0, 0, b.Spec.Width, b.Spec.Height)
	switch {
	case b.Spec.Channels == 1 && b.Spec.Format == UInt8:
		return &image.Gray{Pix: b.Pix, Stride: b.Spec.Width, Rect: rect}
	case b.Spec.Channels == 1 && b.Spec.Format == UInt16:
		samples := make([]uint16, b.Spec.Width*b.Spec.Height)
		fastbytes.LittleEndian.ToU16(b.Pix, samples)
		img := image.NewGray16(rect)
		fastbytes.BigEndian.FromU16(samples, img.Pix)
		return img
	case b.Spec.Channels == 4 && b.Spec.Format == UInt8:
		return &image.NRGBA{Pix: b.Pix, Stride: b.Spec.Width * 4, Rect: rect}
	}
	return nil
}

// Conform converts src to the channel count, sample format and exact dimensions of spec.
// Images are resampled with a Catmull-Rom filter when the dimensions differ.
// This returns nil if spec cannot be represented as an image.
func Conform(src image.Image, spec Spec) *Buffer {
	dst := newImage(spec)
	if dst == nil {
		return nil
	}
	resample(dst, src, draw.CatmullRom)
	return fromImage(dst, spec)
}

// Halve returns b scaled down to half its width and height.
// A bilinear filter is used.
func Halve(b *Buffer) *Buffer {
	spec := b.Spec
	spec.Width, spec.Height = spec.Width>>1, spec.Height>>1
	dst := newImage(spec)
	if dst == nil {
		return nil
	}
	resample(dst, b.Image(), draw.BiLinear)
	return fromImage(dst, spec)
}

func resample(dst draw.Image, src image.Image, scaler draw.Scaler) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}

func newImage(spec Spec) draw.Image {
	rect := image.Rect(0, 0, spec.Width, spec.Height)
	switch {
	case spec.Channels == 1 && spec.Format == UInt8:
		return image.NewGray(rect)
	case spec.Channels == 1 && spec.Format == UInt16:
		return image.NewGray16(rect)
	case spec.Channels == 4 && spec.Format == UInt8:
		return image.NewNRGBA(rect)
	}
	return nil
}

func fromImage(img draw.Image, spec Spec) *Buffer {
	switch img := img.(type) {
	case *image.Gray:
		return &Buffer{Spec: spec, Pix: img.Pix}
	case *image.NRGBA:
		return &Buffer{Spec: spec, Pix: img.Pix}
	case *image.Gray16:
		samples := make([]uint16, spec.Width*spec.Height)
		fastbytes.BigEndian.ToU16(img.Pix, samples)
		b := New(spec)
		fastbytes.LittleEndian.FromU16(samples, b.Pix)
		return b
	}
	return nil
}
