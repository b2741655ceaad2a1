// Package rawfiletest builds small, synthetic DNG files in memory, so
// that the decode pipeline can be tested without shipping camera files.
package rawfiletest

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Options describes the DNG to build. Zero values give a plain 16-bit,
// uncompressed, RGGB file with the CFA image in IFD0.
type Options struct {
	Width, Height int
	Pattern       string   // e.g. "RGGB"; default RGGB
	Samples       []uint16 // Width*Height, row-major

	BitsPerSample int  // default 16
	Packed        bool // pack 10/12/14 bit samples MSB-first
	LosslessJPEG  bool // compression 7, one strip

	// Write the plane as one tile of this size instead of a strip. A tile
	// bigger than Width x Height declares more data than is written.
	TileWidth, TileLength int

	SubIFD    bool // put the CFA image in a SubIFD, behind a dummy IFD0
	LinearRaw bool // claim photometric LinearRaw instead of CFA

	ActiveArea    []int // top, left, bottom, right
	Linearization []int // LinearizationTable entries, written as LONGs
	BlackLevel    int
	WhiteLevel    int

	Make, Model   string
	Orientation   int
	ISO           int // written into the EXIF IFD
	ColorMatrix   []float64
	ForwardMatrix []float64
	AsShotNeutral []float64

	// Ways to break the file.
	Truncate        int // drop this many bytes off the end of the strip
	StripOffsetPast bool
	DeclaredWidth   int // override the ImageWidth tag
	DeclaredHeight  int
}

// Bayer fills a w*h mosaic where every site of a color holds the same
// value.
func Bayer(w, h int, pattern string, r, g, b uint16) []uint16 {
	if pattern == "" {
		pattern = "RGGB"
	}
	vals := map[byte]uint16{'R': r, 'G': g, 'B': b}
	out := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = vals[pattern[(y%2)*2+(x%2)]]
		}
	}
	return out
}

// WriteFile builds the DNG and writes it into dir.
func WriteFile(dir, name string, opts Options) (string, error) {
	data, err := DNG(opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write '%s': %v", path, err)
	}
	return path, nil
}

// TIFF field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

var le = binary.LittleEndian

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shorts(tag uint16, vals ...int) entry {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		le.PutUint16(b[2*i:], uint16(v))
	}
	return entry{tag, typeShort, uint32(len(vals)), b}
}

func longs(tag uint16, vals ...int) entry {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		le.PutUint32(b[4*i:], uint32(v))
	}
	return entry{tag, typeLong, uint32(len(vals)), b}
}

func bytesEntry(tag uint16, vals ...byte) entry {
	return entry{tag, typeByte, uint32(len(vals)), append([]byte{}, vals...)}
}

func ascii(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag, typeASCII, uint32(len(b)), b}
}

func rationals(tag uint16, signed bool, vals ...float64) entry {
	const den = 10000
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		le.PutUint32(b[8*i:], uint32(int32(math.Round(v*den))))
		le.PutUint32(b[8*i+4:], den)
	}
	typ := uint16(typeRational)
	if signed {
		typ = typeSRational
	}
	return entry{tag, typ, uint32(len(vals)), b}
}

func ifdSize(entries []entry) int {
	n := 2 + 12*len(entries) + 4
	for _, e := range entries {
		if len(e.data) > 4 {
			n += len(e.data) + len(e.data)%2
		}
	}
	return n
}

// encodeIFD lays out the directory at file offset base, with its
// out-of-line values straight after the entries.
func encodeIFD(entries []entry, base, next int) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	head := make([]byte, 2+12*len(entries)+4)
	extra := []byte{}
	extraBase := base + len(head)

	le.PutUint16(head, uint16(len(entries)))
	for i, e := range entries {
		p := head[2+12*i:]
		le.PutUint16(p, e.tag)
		le.PutUint16(p[2:], e.typ)
		le.PutUint32(p[4:], e.count)
		if len(e.data) <= 4 {
			copy(p[8:12], e.data)
		} else {
			le.PutUint32(p[8:], uint32(extraBase+len(extra)))
			extra = append(extra, e.data...)
			if len(e.data)%2 == 1 {
				extra = append(extra, 0)
			}
		}
	}
	le.PutUint32(head[2+12*len(entries):], uint32(next))
	return append(head, extra...)
}

func pad2(n int) int { return n + n%2 }

// Tag numbers, see the reader for what they mean.
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
	tagExposureTime        = 33434
	tagFNumber             = 33437
	tagExifIFD             = 34665
	tagISOSpeedRatings     = 34855
	tagDNGVersion          = 50706
	tagLinearizationTable  = 50712
	tagBlackLevel          = 50714
	tagWhiteLevel          = 50717
	tagColorMatrix1        = 50721
	tagAsShotNeutral       = 50728
	tagCalibrationIllum1   = 50778
	tagActiveArea          = 50829
	tagForwardMatrix1      = 50964
)

// DNG builds the file. The layout is: header, strip data, IFD0, then the
// SubIFD and EXIF IFD if there are any.
func DNG(o Options) ([]byte, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("rawfiletest: bad size %dx%d", o.Width, o.Height)
	}
	if len(o.Samples) != o.Width*o.Height {
		return nil, fmt.Errorf("rawfiletest: %dx%d needs %d samples, got %d", o.Width, o.Height, o.Width*o.Height, len(o.Samples))
	}
	if o.Pattern == "" {
		o.Pattern = "RGGB"
	}
	if o.BitsPerSample == 0 {
		o.BitsPerSample = 16
	}

	pix, compression, err := encodePixels(o)
	if err != nil {
		return nil, err
	}
	if o.Truncate > 0 && o.Truncate < len(pix) {
		pix = pix[:len(pix)-o.Truncate]
	}

	pixOff := 8
	stripOff := pixOff
	if o.StripOffsetPast {
		stripOff = 1 << 24
	}

	cfa := cfaEntries(o, compression, stripOff, len(pix))
	meta := metaEntries(o)
	exif := exifEntries(o)

	ifd0Off := pad2(pixOff + len(pix))
	var ifd0, sub []entry
	if o.SubIFD {
		ifd0 = append(meta,
			longs(tagNewSubfileType, 1),
			longs(tagImageWidth, 1),
			longs(tagImageLength, 1),
			shorts(tagPhotometric, 2),
			longs(tagSubIFDs, 0))
		sub = cfa
	} else {
		ifd0 = append(meta, cfa...)
	}
	if exif != nil {
		ifd0 = append(ifd0, longs(tagExifIFD, 0))
	}

	subOff := pad2(ifd0Off + ifdSize(ifd0))
	exifOff := subOff
	if sub != nil {
		exifOff = pad2(subOff + ifdSize(sub))
	}

	// Now the offsets are known, patch the pointer tags.
	for i, e := range ifd0 {
		switch e.tag {
		case tagSubIFDs:
			ifd0[i] = longs(tagSubIFDs, subOff)
		case tagExifIFD:
			ifd0[i] = longs(tagExifIFD, exifOff)
		}
	}

	out := make([]byte, 8, exifOff+ifdSize(exif)+8)
	copy(out, "II")
	le.PutUint16(out[2:], 42)
	le.PutUint32(out[4:], uint32(ifd0Off))

	out = append(out, pix...)
	out = padTo(out, ifd0Off)
	out = append(out, encodeIFD(ifd0, ifd0Off, 0)...)
	if sub != nil {
		out = padTo(out, subOff)
		out = append(out, encodeIFD(sub, subOff, 0)...)
	}
	if exif != nil {
		out = padTo(out, exifOff)
		out = append(out, encodeIFD(exif, exifOff, 0)...)
	}
	return out, nil
}

func padTo(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, 0)
	}
	return b
}

func cfaEntries(o Options, compression, stripOff, stripLen int) []entry {
	w, h := o.Width, o.Height
	if o.DeclaredWidth > 0 {
		w = o.DeclaredWidth
	}
	if o.DeclaredHeight > 0 {
		h = o.DeclaredHeight
	}

	photometric := 32803
	if o.LinearRaw {
		photometric = 34892
	}

	pattern := make([]byte, 4)
	for i := 0; i < 4; i++ {
		switch o.Pattern[i] {
		case 'R':
			pattern[i] = 0
		case 'G':
			pattern[i] = 1
		case 'B':
			pattern[i] = 2
		default:
			pattern[i] = o.Pattern[i]
		}
	}

	es := []entry{
		longs(tagNewSubfileType, 0),
		longs(tagImageWidth, w),
		longs(tagImageLength, h),
		shorts(tagBitsPerSample, o.BitsPerSample),
		shorts(tagCompression, compression),
		shorts(tagPhotometric, photometric),
		shorts(tagSamplesPerPixel, 1),
		shorts(tagCFARepeatPatternDim, 2, 2),
		bytesEntry(tagCFAPattern, pattern...),
	}
	if o.TileWidth > 0 && o.TileLength > 0 {
		es = append(es,
			longs(tagTileWidth, o.TileWidth),
			longs(tagTileLength, o.TileLength),
			longs(tagTileOffsets, stripOff),
			longs(tagTileByteCounts, stripLen))
	} else {
		es = append(es,
			longs(tagStripOffsets, stripOff),
			longs(tagRowsPerStrip, h),
			longs(tagStripByteCounts, stripLen))
	}
	if o.BlackLevel > 0 {
		es = append(es, longs(tagBlackLevel, o.BlackLevel))
	}
	if o.WhiteLevel > 0 {
		es = append(es, longs(tagWhiteLevel, o.WhiteLevel))
	}
	if len(o.ActiveArea) == 4 {
		es = append(es, longs(tagActiveArea, o.ActiveArea...))
	}
	if len(o.Linearization) > 0 {
		es = append(es, longs(tagLinearizationTable, o.Linearization...))
	}
	return es
}

func metaEntries(o Options) []entry {
	es := []entry{bytesEntry(tagDNGVersion, 1, 4, 0, 0)}
	if o.Make != "" {
		es = append(es, ascii(tagMake, o.Make))
	}
	if o.Model != "" {
		es = append(es, ascii(tagModel, o.Model))
	}
	if o.Orientation > 0 {
		es = append(es, shorts(tagOrientation, o.Orientation))
	}
	if len(o.ColorMatrix) == 9 {
		es = append(es, rationals(tagColorMatrix1, true, o.ColorMatrix...), shorts(tagCalibrationIllum1, 21))
	}
	if len(o.ForwardMatrix) == 9 {
		es = append(es, rationals(tagForwardMatrix1, true, o.ForwardMatrix...))
	}
	if len(o.AsShotNeutral) == 3 {
		es = append(es, rationals(tagAsShotNeutral, false, o.AsShotNeutral...))
	}
	return es
}

func exifEntries(o Options) []entry {
	if o.ISO <= 0 {
		return nil
	}
	return []entry{
		shorts(tagISOSpeedRatings, o.ISO),
		rationals(tagExposureTime, false, 0.004),
		rationals(tagFNumber, false, 5.6),
	}
}

func encodePixels(o Options) ([]byte, int, error) {
	if o.LosslessJPEG {
		return EncodeLJ92(o.Samples, o.Width, o.Height, o.BitsPerSample), 7, nil
	}

	switch {
	case o.Packed:
		if o.BitsPerSample != 10 && o.BitsPerSample != 12 && o.BitsPerSample != 14 {
			return nil, 0, fmt.Errorf("rawfiletest: can't pack %d bit samples", o.BitsPerSample)
		}
		return pack(o.Samples, o.Width, o.Height, o.BitsPerSample), 1, nil

	case o.BitsPerSample == 8:
		b := make([]byte, len(o.Samples))
		for i, s := range o.Samples {
			b[i] = byte(s)
		}
		return b, 1, nil
	}

	b := make([]byte, 2*len(o.Samples))
	for i, s := range o.Samples {
		le.PutUint16(b[2*i:], s)
	}
	return b, 1, nil
}

// pack writes samples MSB-first, each row starting on a byte boundary.
func pack(samples []uint16, w, h, bps int) []byte {
	rowBytes := (w*bps + 7) / 8
	out := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		row := out[y*rowBytes:]
		bit := 0
		for x := 0; x < w; x++ {
			v := samples[y*w+x]
			for k := bps - 1; k >= 0; k-- {
				if v&(1<<uint(k)) != 0 {
					row[bit>>3] |= 0x80 >> uint(bit&7)
				}
				bit++
			}
		}
	}
	return out
}
