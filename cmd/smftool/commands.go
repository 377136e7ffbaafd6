package main

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/FireworkMC/smf"
	"github.com/FireworkMC/smf/imagebuf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var createCommand = &cli.Command{
	Name:      "create",
	Usage:     "Create a map container",
	ArgsUsage: "<file.smf>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "overwrite", Usage: "Overwrite an existing file"},
		&cli.IntFlag{Name: "width", Value: 8, Usage: "Map width in units of 64 elevation squares"},
		&cli.IntFlag{Name: "length", Value: 8, Usage: "Map length in units of 64 elevation squares"},
		&cli.IntFlag{Name: "tile-size", Usage: "Tile size in texels (default 32)"},
		&cli.Float64Flag{Name: "floor", Usage: "Minimum elevation in meters (default 10)"},
		&cli.Float64Flag{Name: "ceiling", Usage: "Maximum elevation in meters (default 256)"},
		&cli.StringFlag{Name: "height", Usage: "Heightmap image", TakesFile: true},
		&cli.StringFlag{Name: "type", Usage: "Terrain type image", TakesFile: true},
		&cli.StringFlag{Name: "metal", Usage: "Metal density image", TakesFile: true},
		&cli.StringFlag{Name: "preview", Usage: "Preview image", TakesFile: true},
		&cli.StringFlag{Name: "vegetation", Usage: "Vegetation density image", TakesFile: true},
		&cli.StringSliceFlag{Name: "tiles", Usage: "Tile atlas files referenced by the tile map"},
		&cli.StringFlag{Name: "features", Usage: "Feature list (NAME,X,Y,Z,ANGLE,SCALE)", TakesFile: true},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return errors.New("missing output file")
		}

		f, err := smf.CreateFs(fs, path, boolOption(c, "overwrite"))
		if err != nil {
			return err
		}
		defer f.Close()

		if err = f.SetSize(c.Int("width"), c.Int("length")); err != nil {
			return err
		}
		if err = f.SetTileSize(intOption(c, "tile-size")); err != nil {
			return err
		}
		if err = f.SetDepth(float32(floatOption(c, "floor")), float32(floatOption(c, "ceiling"))); err != nil {
			return err
		}

		for _, tiles := range c.StringSlice("tiles") {
			if err = f.AddTileFile(tiles); err != nil {
				return err
			}
		}

		if features := c.String("features"); features != "" {
			records, err := readFeatures(features)
			if err != nil {
				return err
			}
			if _, err = f.ReplaceFeatures(records, true); err != nil {
				return err
			}
		}

		if err = f.Flush(); err != nil {
			return err
		}

		writers := []struct {
			flag  string
			write func(image.Image) error
		}{
			{"height", f.WriteHeight},
			{"type", f.WriteType},
			{"metal", f.WriteMetal},
			{"preview", f.WritePreview},
			{"vegetation", f.WriteVegetation},
		}
		for _, w := range writers {
			src := c.String(w.flag)
			if src == "" {
				continue
			}
			img, err := imagebuf.Load(fs, src)
			if err != nil {
				return err
			}
			logrus.Infof("writing %s from %s", w.flag, src)
			if err = w.write(img); err != nil {
				return errors.Wrapf(err, "write %s", w.flag)
			}
		}

		logrus.Infof("created %s", path)
		return nil
	},
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "Print a summary of a map container",
	ArgsUsage: "<file.smf>",
	Action: func(c *cli.Context) error {
		f, err := smf.OpenFs(fs, c.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Fprint(c.App.Writer, f.Info())
		return nil
	},
}

var extractCommand = &cli.Command{
	Name:      "extract",
	Usage:     "Extract the images and features of a map container",
	ArgsUsage: "<file.smf>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Value: ".", Usage: "Output directory"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		f, err := smf.OpenFs(fs, path)
		if err != nil {
			return err
		}
		defer f.Close()

		out := c.String("out")
		if err = fs.MkdirAll(out, 0755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
		prefix := filepath.Join(out, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

		readers := []struct {
			name string
			read func() (*imagebuf.Buffer, error)
		}{
			{"height", f.Height},
			{"type", f.Type},
			{"metal", f.Metal},
			{"preview", f.Preview},
			{"vegetation", f.Vegetation},
		}
		for _, r := range readers {
			buf, err := r.read()
			if err == smf.ErrNoVegetation {
				continue
			} else if err != nil {
				return errors.Wrapf(err, "read %s", r.name)
			}
			if err = writePNG(prefix+"_"+r.name+".png", buf); err != nil {
				return err
			}
		}

		csvPath := prefix + "_features.csv"
		logrus.Infof("writing %s", csvPath)
		return errors.Wrap(writeFile(csvPath, []byte(f.FeaturesCSV())), "write features")
	},
}

var backupCommand = &cli.Command{
	Name:      "backup",
	Usage:     "Write a compressed backup of a map container",
	ArgsUsage: "<file.smf> <backup.zst>",
	Action: func(c *cli.Context) (err error) {
		if c.NArg() != 2 {
			return errors.New("expected a container and a backup file")
		}

		out, err := fs.Create(c.Args().Get(1))
		if err != nil {
			return errors.Wrap(err, "create backup")
		}
		defer func() {
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
		}()

		return smf.Backup(fs, c.Args().Get(0), out)
	},
}

var restoreCommand = &cli.Command{
	Name:      "restore",
	Usage:     "Restore a map container from a backup",
	ArgsUsage: "<backup.zst> <file.smf>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "overwrite", Usage: "Overwrite an existing file"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("expected a backup and a container file")
		}

		in, err := fs.Open(c.Args().Get(0))
		if err != nil {
			return errors.Wrap(err, "open backup")
		}
		defer in.Close()

		return smf.Restore(fs, in, c.Args().Get(1), boolOption(c, "overwrite"))
	},
}

// readFeatures reads a feature list. A leading NAME,... header row is skipped.
func readFeatures(path string) ([][]string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open feature list")
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse feature list")
	}

	if len(records) > 0 && len(records[0]) > 0 && strings.EqualFold(records[0][0], "NAME") {
		records = records[1:]
	}
	return records, nil
}

func writePNG(path string, buf *imagebuf.Buffer) error {
	img := buf.Image()
	if img == nil {
		return errors.Errorf("%s: unsupported image layout", path)
	}

	logrus.Infof("writing %s (%dx%d)", path, buf.Spec.Width, buf.Spec.Height)
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "create image")
	}
	defer file.Close()
	return errors.Wrap(png.Encode(file, img), "encode image")
}

func writeFile(path string, data []byte) error {
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(data)
	return err
}
