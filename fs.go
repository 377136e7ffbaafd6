package smf

import (
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

// reader an interface that implements io.ReadAt and io.Closer
type reader interface {
	io.ReaderAt
	io.Closer
}

// writer a writer to modify a container.
type writer interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
}

var _ writer = afero.File(nil)

func openFile(fs afero.Fs, path string, flag int) (f afero.File, size int64, err error) {
	if f, err = fs.OpenFile(path, flag, 0666); err != nil {
		return nil, 0, errors.Wrap("smf: unable to open "+path, err)
	}

	if info, err := f.Stat(); err != nil {
		f.Close()
		return nil, 0, errors.Wrap("smf: unable to stat "+path, err)
	} else {
		size = info.Size()
	}

	return f, size, nil
}

// view opens the container for reading for the duration of fn.
func (f *File) view(fn func(r io.ReaderAt, size int64) error) (err error) {
	if f.closed {
		return ErrClosed
	}

	var r reader
	var size int64
	if r, size, err = openFile(f.settings.fs, f.path, os.O_RDONLY); err != nil {
		return err
	}
	defer r.Close()

	return fn(r, size)
}

// update opens the container for writing for the duration of fn.
// Any error returned by Close is returned if fn succeeds.
func (f *File) update(fn func(w writer) error) (err error) {
	if f.closed {
		return ErrClosed
	}
	return f.updateFlags(os.O_RDWR, fn)
}

func (f *File) updateFlags(flag int, fn func(w writer) error) (err error) {
	var file afero.File
	if file, _, err = openFile(f.settings.fs, f.path, flag); err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = errors.Wrap("smf: unable to close "+f.path, closeErr)
		}
	}()

	return fn(file)
}

// TestFs reports whether the file at path starts with the container signature.
func TestFs(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [len(Signature)]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic == Signature
}

// Test reports whether the file at path starts with the container signature.
func Test(path string) bool { return TestFs(filesystem, path) }
