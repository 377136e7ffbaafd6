package smf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"
	"github.com/yehan2002/errors"
)

const (
	featureHeaderSize = 8
	// FeatureSize the serialized size of a single feature record.
	FeatureSize = 24
)

// BuiltinFeatureTypes the feature types known to the engine without a definition.
var BuiltinFeatureTypes = func() []string {
	types := make([]string, 0, 17)
	for i := 0; i < 16; i++ {
		types = append(types, fmt.Sprintf("TreeType%d", i))
	}
	return append(types, "GeoVent")
}()

// Feature a placed object.
type Feature struct {
	// Type index into the feature type table.
	Type     uint32
	X, Y, Z  float32
	Rotation float32
	Scale    float32
}

// FeatureTable the feature type names and the placed features referencing them.
type FeatureTable struct {
	Types    []string
	Features []Feature
}

// Size the serialized size of the table.
func (t *FeatureTable) Size() int64 {
	size := int64(featureHeaderSize)
	for _, name := range t.Types {
		size += int64(len(name)) + 1
	}
	return size + int64(len(t.Features))*FeatureSize
}

// typeIndex returns the index of the type with the given name, registering it if it does not exist.
func (t *FeatureTable) typeIndex(name string) uint32 {
	for i, n := range t.Types {
		if n == name {
			return uint32(i)
		}
	}
	t.Types = append(t.Types, name)
	return uint32(len(t.Types) - 1)
}

// Add appends a feature of the named type.
func (t *FeatureTable) Add(name string, x, y, z, rotation, scale float32) {
	t.Features = append(t.Features, Feature{
		Type: t.typeIndex(name),
		X:    x, Y: y, Z: z,
		Rotation: rotation,
		Scale:    scale,
	})
}

// Clear removes every type and feature.
func (t *FeatureTable) Clear() {
	t.Types = nil
	t.Features = nil
}

// Replace clears the table and adds every valid record.
// A record is NAME,X,Y,Z,ANGLE,SCALE. Invalid records are skipped and counted.
// If builtin is set the table is seeded with [BuiltinFeatureTypes].
func (t *FeatureTable) Replace(records [][]string, builtin bool, logger logrus.FieldLogger) (skipped int) {
	t.Clear()
	if builtin {
		t.Types = append(t.Types, BuiltinFeatureTypes...)
	}

	for n, record := range records {
		if len(record) != 6 {
			logger.Warnf("smf: skipping feature record %d: expected 6 fields, got %d", n+1, len(record))
			skipped++
			continue
		}

		var values [5]float32
		var err error
		for i := range values {
			if values[i], err = parseFloat(record[i+1]); err != nil {
				break
			}
		}
		if err != nil {
			logger.Warnf("smf: skipping feature record %d: %s", n+1, err)
			skipped++
			continue
		}

		t.Add(strings.TrimSpace(record[0]), values[0], values[1], values[2], values[3], values[4])
	}
	return skipped
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	return float32(v), err
}

// CSV renders the features as CSV with a NAME,X,Y,Z,ANGLE,SCALE header.
func (t *FeatureTable) CSV() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("NAME,X,Y,Z,ANGLE,SCALE\n")
	for _, f := range t.Features {
		buf.WriteString(t.Types[f.Type])
		for _, v := range [...]float32{f.X, f.Y, f.Z, f.Rotation, f.Scale} {
			buf.WriteByte(',')
			buf.B = strconv.AppendFloat(buf.B, float64(v), 'g', -1, 32)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func (t *FeatureTable) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Types)))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Features)))
	for _, name := range t.Types {
		b = append(b, name...)
		b = append(b, 0)
	}
	for _, f := range t.Features {
		b = binary.LittleEndian.AppendUint32(b, f.Type)
		for _, v := range [...]float32{f.X, f.Y, f.Z, f.Rotation, f.Scale} {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
		}
	}
	return b
}

// errSkipFeatures the feature section is unusable and is ignored.
const errSkipFeatures = errors.Const("smf: feature section ignored")

// readFeatures reads the feature table starting at offset.
// The table is rejected as a whole with errSkipFeatures if the declared feature count does not fit in the file,
// if a name cannot be read, or if a feature references a type that does not exist.
func readFeatures(r io.ReaderAt, offset, fileSize int64) (FeatureTable, error) {
	var t FeatureTable
	var header [featureHeaderSize]byte
	if _, err := r.ReadAt(header[:], offset); err != nil {
		return t, errors.CauseStr(errSkipFeatures, "truncated feature header")
	}

	types := int32(binary.LittleEndian.Uint32(header[0:]))
	features := int32(binary.LittleEndian.Uint32(header[4:]))
	if types < 0 || features < 0 {
		return t, errors.CauseStr(errSkipFeatures, "negative feature count")
	}
	if offset+featureHeaderSize+int64(features)*FeatureSize > fileSize {
		return t, errors.CauseStr(errSkipFeatures, "file is too small for the declared number of features")
	}

	br := bufio.NewReader(io.NewSectionReader(r, offset+featureHeaderSize, fileSize-offset-featureHeaderSize))
	for i := int32(0); i < types; i++ {
		name, err := readName(br)
		if err != nil {
			return FeatureTable{}, errors.CauseStr(errSkipFeatures, "invalid feature type name")
		}
		t.Types = append(t.Types, name)
	}

	var record [FeatureSize]byte
	for i := int32(0); i < features; i++ {
		if _, err := io.ReadFull(br, record[:]); err != nil {
			return FeatureTable{}, errors.CauseStr(errSkipFeatures, "truncated feature record")
		}
		f := Feature{
			Type:     binary.LittleEndian.Uint32(record[0:]),
			X:        math.Float32frombits(binary.LittleEndian.Uint32(record[4:])),
			Y:        math.Float32frombits(binary.LittleEndian.Uint32(record[8:])),
			Z:        math.Float32frombits(binary.LittleEndian.Uint32(record[12:])),
			Rotation: math.Float32frombits(binary.LittleEndian.Uint32(record[16:])),
			Scale:    math.Float32frombits(binary.LittleEndian.Uint32(record[20:])),
		}
		if f.Type >= uint32(len(t.Types)) {
			return FeatureTable{}, errors.CauseStr(errSkipFeatures, "feature references an unknown type")
		}
		t.Features = append(t.Features, f)
	}
	return t, nil
}
