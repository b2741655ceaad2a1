package rawfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/tiff"
)

// TIFF / TIFF-EP / DNG tags that we care about.
const (
	tagNewSubfileType      = 254
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagMake                = 271
	tagModel               = 272
	tagStripOffsets        = 273
	tagOrientation         = 274
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSubIFDs             = 330
	tagCFARepeatPatternDim = 33421
	tagCFAPattern          = 33422
	tagExifIFD             = 34665
	tagISOSpeedRatings     = 34855
	tagCFAPlaneColor       = 50710
	tagLinearizationTable  = 50712
	tagBlackLevelRepeatDim = 50713
	tagBlackLevel          = 50714
	tagWhiteLevel          = 50717
	tagColorMatrix1        = 50721
	tagColorMatrix2        = 50722
	tagAsShotNeutral       = 50728
	tagCalibrationIllum1   = 50778
	tagCalibrationIllum2   = 50779
	tagActiveArea          = 50829
	tagForwardMatrix1      = 50964
	tagForwardMatrix2      = 50965
)

const (
	photometricCFA       = 32803
	photometricLinearRaw = 34892

	compressionNone         = 1
	compressionLosslessJPEG = 7

	illuminantD65 = 21
)

// An ifd is one TIFF directory, indexed by tag id.
type ifd struct {
	name string
	tags map[uint16]*tiff.Tag
}

func newIFD(name string, d *tiff.Dir) ifd {
	dir := ifd{name: name, tags: map[uint16]*tiff.Tag{}}
	for _, t := range d.Tags {
		dir.tags[t.Id] = t
	}
	return dir
}

func (d ifd) has(id uint16) bool {
	_, ok := d.tags[id]
	return ok
}

func (d ifd) count(id uint16) int {
	if t, ok := d.tags[id]; ok {
		return int(t.Count)
	}
	return 0
}

// ints returns all the integer values of a tag. BYTE/SHORT/LONG (and
// signed variants) come through goexif's int conversion; UNDEFINED (as
// some cameras write CFAPattern) is returned byte by byte.
func (d ifd) ints(id uint16) ([]int64, error) {
	t, ok := d.tags[id]
	if !ok {
		return nil, nil
	}

	switch t.Format() {
	case tiff.IntVal:
		vals := make([]int64, t.Count)
		for i := range vals {
			v, err := t.Int64(i)
			if err != nil {
				return nil, fmt.Errorf("tag %d[%d]: %v", id, i, err)
			}
			vals[i] = v
		}
		return vals, nil

	case tiff.UndefVal:
		vals := make([]int64, len(t.Val))
		for i, b := range t.Val {
			vals[i] = int64(b)
		}
		return vals, nil
	}

	return nil, fmt.Errorf("tag %d has format %v, wanted integers", id, t.Format())
}

func (d ifd) int(id uint16, def int64) (int64, error) {
	vals, err := d.ints(id)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// floats returns all the values of a numeric tag, whatever its type
// (DNG allows SHORT, LONG or RATIONAL for e.g. BlackLevel).
func (d ifd) floats(id uint16) ([]float64, error) {
	t, ok := d.tags[id]
	if !ok {
		return nil, nil
	}

	vals := make([]float64, t.Count)
	for i := range vals {
		switch t.Format() {
		case tiff.IntVal:
			v, err := t.Int64(i)
			if err != nil {
				return nil, fmt.Errorf("tag %d[%d]: %v", id, i, err)
			}
			vals[i] = float64(v)
		case tiff.RatVal:
			num, den, err := t.Rat2(i)
			if err != nil {
				return nil, fmt.Errorf("tag %d[%d]: %v", id, i, err)
			}
			if den == 0 {
				return nil, fmt.Errorf("tag %d[%d]: zero denominator", id, i)
			}
			vals[i] = float64(num) / float64(den)
		case tiff.FloatVal:
			v, err := t.Float(i)
			if err != nil {
				return nil, fmt.Errorf("tag %d[%d]: %v", id, i, err)
			}
			vals[i] = v
		default:
			return nil, fmt.Errorf("tag %d has format %v, wanted numbers", id, t.Format())
		}
	}
	return vals, nil
}

func (d ifd) str(id uint16) string {
	t, ok := d.tags[id]
	if !ok {
		return ""
	}
	s, err := t.StringVal()
	if err != nil {
		return ""
	}
	return s
}

// container is a parsed TIFF: the main IFD chain plus any SubIFDs, in
// file order.
type container struct {
	order binary.ByteOrder
	dirs  []ifd
}

func isTIFF(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*"))
}

// parseContainer walks IFD0 and its chain, and one level of SubIFDs
// below each (DNG keeps the raw data in a SubIFD of IFD0).
func parseContainer(data []byte) (*container, error) {
	tf, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tiff decode: %v", err)
	}
	if len(tf.Dirs) == 0 {
		return nil, fmt.Errorf("tiff has no directories")
	}

	c := &container{order: tf.Order}
	for i, d := range tf.Dirs {
		dir := newIFD(fmt.Sprintf("IFD%d", i), d)
		c.dirs = append(c.dirs, dir)

		offsets, err := dir.ints(tagSubIFDs)
		if err != nil {
			return nil, fmt.Errorf("%s SubIFDs: %v", dir.name, err)
		}
		for j, off := range offsets {
			sub, err := decodeDirAt(data, off, tf.Order)
			if err != nil {
				return nil, fmt.Errorf("%s SubIFD[%d] @%d: %v", dir.name, j, off, err)
			}
			c.dirs = append(c.dirs, newIFD(fmt.Sprintf("%s/SubIFD%d", dir.name, j), sub))
		}
	}

	return c, nil
}

func decodeDirAt(data []byte, offset int64, order binary.ByteOrder) (*tiff.Dir, error) {
	if offset < 8 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("offset outside file (len %d)", len(data))
	}
	r := bytes.NewReader(data)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	d, _, err := tiff.DecodeDir(r, order)
	return d, err
}

// cfaDir picks the directory holding the raw mosaic: the biggest one
// with a CFA photometric interpretation.
func (c *container) cfaDir() (ifd, bool) {
	best, bestArea, found := ifd{}, int64(-1), false
	for _, d := range c.dirs {
		if p, err := d.int(tagPhotometric, 0); err != nil || p != photometricCFA {
			continue
		}
		w, _ := d.int(tagImageWidth, 0)
		h, _ := d.int(tagImageLength, 0)
		if w*h > bestArea {
			best, bestArea, found = d, w*h, true
		}
	}
	return best, found
}

func (c *container) hasLinearRaw() bool {
	for _, d := range c.dirs {
		if p, _ := d.int(tagPhotometric, 0); p == photometricLinearRaw {
			return true
		}
	}
	return false
}

// pickMatrix chooses between the two DNG calibrations, preferring the one
// shot under D65 (which is what our output space assumes), else the second.
func (c *container) pickMatrix(tag1, tag2 uint16) ([]float64, error) {
	ifd0 := c.dirs[0]
	m1, err := ifd0.floats(tag1)
	if err != nil {
		return nil, err
	}
	m2, err := ifd0.floats(tag2)
	if err != nil {
		return nil, err
	}
	illum1, _ := ifd0.int(tagCalibrationIllum1, 0)

	switch {
	case m1 != nil && m2 == nil:
		return m1, nil
	case m1 == nil:
		return m2, nil
	case illum1 == illuminantD65:
		return m1, nil
	}
	return m2, nil
}
