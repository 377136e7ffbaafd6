// Package smf reads and writes map container files.
//
// A map container holds a fixed header, a chain of extension headers, a
// heightmap, a terrain type map, a tile index referencing external tile atlas
// files followed by the tile map, a compressed preview image, a metal density
// map, a feature table and optional extension payloads (currently only a
// vegetation density map). The offset of every section is derived from the
// sizes of all sections before it, see [ComputeLayout].
package smf

import (
	"github.com/FireworkMC/smf/preview"
	"github.com/FireworkMC/smf/smt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

const (
	// ErrSignature returned if a file does not start with the container signature.
	ErrSignature = errors.Const("smf: not a map container")
	// ErrExists returned by Create if the file exists and overwrite was not requested.
	ErrExists = errors.Const("smf: file already exists")
	// ErrCorrupted the file contains invalid/corrupted data.
	ErrCorrupted = errors.Const("smf: corrupted file")
	// ErrClosed the container has already been closed.
	ErrClosed = errors.Const("smf: container closed")
	// ErrNoVegetation returned when reading the vegetation map of a container without one.
	ErrNoVegetation = errors.Const("smf: container has no vegetation map")
	// ErrTileMapSize returned if a tile map does not match the size of the container.
	ErrTileMapSize = errors.Const("smf: tile map has incorrect dimensions")
	// ErrInvalidSize returned if a size passed to a setter is not positive.
	ErrInvalidSize = errors.Const("smf: invalid size")
	// ErrTooLarge returned if a map size would make the file larger than the section pointers can address.
	ErrTooLarge = errors.Const("smf: map too large")
	// ErrNotWritten returned when reading a payload that has not been written since the map was resized.
	ErrNotWritten = errors.Const("smf: payload has not been written at the current map size")

	errNameTooLong    = errors.Const("smf: name too long")
	errUnknownSection = errors.Const("smf: unknown section")
)

// IDSource generates the random instance id written to new containers.
type IDSource func() int32

// Settings settings
type Settings struct {
	// Logger receives debug output and warnings about skipped data.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger

	// ID generates the instance id of new containers.
	// Default: derived from a random UUID.
	ID IDSource

	// Atlases is used to look up the tile count of tile atlas files.
	// Default: a new cache on the container's filesystem.
	Atlases *smt.Cache

	// Codec the block codec used for the preview image.
	// Default: preview.DefaultCodec (DXT1)
	Codec preview.BlockCodec

	fs afero.Fs
}

var filesystem afero.Fs = &afero.OsFs{}

var defaultSettings = Settings{
	ID: randomID,
	fs: filesystem,
}

func randomID() int32 { return int32(uuid.New().ID()) }

func getSettings(s []Settings, fs afero.Fs) (settings Settings, err error) {
	settings = defaultSettings

	if len(s) == 1 {
		settings = s[0]

		if settings.ID == nil {
			settings.ID = defaultSettings.ID
		}
	}

	if settings.Logger == nil {
		settings.Logger = logrus.StandardLogger()
	}

	if settings.Codec == nil {
		settings.Codec = preview.DefaultCodec
	}

	settings.fs = fs

	if settings.Atlases == nil {
		if settings.Atlases, err = smt.NewCache(fs, smt.DefaultCacheSize); err != nil {
			return settings, err
		}
	}

	return settings, nil
}
