package imagebuf

import (
	"image"
	// registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Load decodes the image at path.
// PNG, JPEG, GIF, BMP and TIFF images are supported.
func Load(fs afero.Fs, path string) (image.Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap("imagebuf: unable to open image", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap("imagebuf: unable to decode "+path, err)
	}
	return img, nil
}
