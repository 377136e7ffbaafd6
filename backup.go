package smf

import (
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

// Backup writes a zstd compressed copy of the container at path to w.
// Writes to a container are not transactional, a backup taken before
// modifying a container can be restored with [Restore] if a write fails.
func Backup(fs afero.Fs, path string, w io.Writer) (err error) {
	if !TestFs(fs, path) {
		return ErrSignature
	}

	src, err := fs.Open(path)
	if err != nil {
		return errors.Wrap("smf: unable to open "+path, err)
	}
	defer src.Close()

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return errors.Wrap("smf: unable to create compressor", err)
	}

	if _, err = io.Copy(enc, src); err != nil {
		enc.Close()
		return errors.Wrap("smf: unable to compress "+path, err)
	}
	return errors.Wrap("smf: unable to compress "+path, enc.Close())
}

// Restore decompresses a backup created by [Backup] from r to path.
// If the file exists and overwrite is not set, ErrExists is returned.
// If the backup does not contain a container, ErrSignature is returned and nothing is written.
func Restore(fs afero.Fs, r io.Reader, path string, overwrite bool) (err error) {
	if exists, _ := afero.Exists(fs, path); exists && !overwrite {
		return ErrExists
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return errors.Wrap("smf: unable to create decompressor", err)
	}
	defer dec.Close()

	var magic [len(Signature)]byte
	if _, err = io.ReadFull(dec, magic[:]); err != nil || magic != Signature {
		return ErrSignature
	}

	dst, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.Wrap("smf: unable to create "+path, err)
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = errors.Wrap("smf: unable to close "+path, closeErr)
		}
	}()

	if _, err = dst.Write(magic[:]); err != nil {
		return errors.Wrap("smf: unable to write "+path, err)
	}
	if _, err = io.Copy(dst, dec); err != nil {
		return errors.Wrap("smf: unable to decompress backup", err)
	}
	return nil
}
