// Package preview encodes and decodes the block compressed preview image of a map container.
//
// The preview is a 1024x1024 RGBA image persisted as a chain of 9 mip levels
// (1024x1024 down to 4x4), each level compressed independently with a 4x4 block codec.
package preview

import (
	"image"
	"io"

	"github.com/FireworkMC/smf/dxt"
	"github.com/FireworkMC/smf/imagebuf"
	"github.com/sirupsen/logrus"
	"github.com/yehan2002/errors"
)

const (
	// Size the width and height of the top level of the preview.
	Size = 1024
	// Levels the number of mip levels stored.
	Levels = 9
	// DataSize the number of bytes used by the full DXT1 mip chain.
	DataSize = 699048
)

// ErrShortData returned if the compressed data is smaller than the top level.
const ErrShortData = errors.Const("preview: not enough data for the top level")

// Spec the spec of the decoded preview.
var Spec = imagebuf.Spec{Width: Size, Height: Size, Channels: 4, Format: imagebuf.UInt8}

// BlockCodec compresses and decompresses RGBA pixels in 4x4 blocks.
// The output size of Compress must equal StorageSize for the same dimensions.
type BlockCodec interface {
	Compress(rgba []byte, width, height int) []byte
	Decompress(blocks []byte, width, height int) []byte
	StorageSize(width, height int) int
}

// DefaultCodec the codec used when none is given.
var DefaultCodec BlockCodec = dxt.DXT1{}

// Codec encodes and decodes previews.
type Codec struct {
	Blocks BlockCodec
	Logger logrus.FieldLogger
}

// New returns a codec using the given block codec.
// If c is nil, DefaultCodec is used.
func New(c BlockCodec, logger logrus.FieldLogger) *Codec {
	if c == nil {
		c = DefaultCodec
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Codec{Blocks: c, Logger: logger}
}

// ChainSize returns the number of bytes written by Encode.
func (c *Codec) ChainSize() int64 {
	var total int64
	for i, size := 0, Size; i < Levels; i, size = i+1, size>>1 {
		total += int64(c.Blocks.StorageSize(size, size))
	}
	return total
}

// Encode writes the full mip chain for src to w.
// If src is nil a transparent black image is encoded.
// Each level is derived from the uncompressed previous level and is written
// before the next level is derived.
func (c *Codec) Encode(w io.Writer, src image.Image) error {
	var level *imagebuf.Buffer
	if src == nil {
		c.Logger.Debug("preview: encoding blank image")
		level = imagebuf.New(Spec)
	} else {
		level = imagebuf.Conform(src, Spec)
	}

	for i := 0; i < Levels; i++ {
		width, height := level.Spec.Width, level.Spec.Height
		c.Logger.Debugf("preview: compressing level %d (%dx%d)", i, width, height)

		if _, err := w.Write(c.Blocks.Compress(level.Pix, width, height)); err != nil {
			return errors.Wrap("preview: unable to write mip level", err)
		}

		if i+1 < Levels {
			level = imagebuf.Halve(level)
		}
	}
	return nil
}

// Decode reads and decompresses the top level of the mip chain.
// The remaining levels are never read.
func (c *Codec) Decode(r io.Reader) (*imagebuf.Buffer, error) {
	data := make([]byte, c.Blocks.StorageSize(Size, Size))
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrShortData
		}
		return nil, errors.Wrap("preview: unable to read top level", err)
	}
	return &imagebuf.Buffer{Spec: Spec, Pix: c.Blocks.Decompress(data, Size, Size)}, nil
}
