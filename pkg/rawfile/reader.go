// Package rawfile reads camera RAW files (DNG and other TIFF/EP
// containers) into a RawFrame: the bare CFA mosaic, its black and white
// levels, and whatever capture metadata the file carries.
package rawfile

import (
	"fmt"
	"io/ioutil"
	"log"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// ReadFile loads and parses the RAW file at path.
func ReadFile(path string) (*RawFrame, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, rawerr.New(rawerr.UnreadableFile, "rawfile.ReadFile", err)
	}

	f, err := Read(contents)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.CorruptData, fmt.Sprintf("rawfile.ReadFile '%s'", path), err)
	}
	return f, nil
}

// Read parses a RAW file that is already in memory.
func Read(data []byte) (*RawFrame, error) {
	op := "rawfile.Read"

	if !isTIFF(data) {
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "not a TIFF based RAW file")
	}

	c, err := parseContainer(data)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}

	d, ok := c.cfaDir()
	if !ok {
		if c.hasLinearRaw() {
			return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "LinearRaw (already demosaiced) DNGs are not handled")
		}
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "no CFA image found in %d directories", len(c.dirs))
	}

	f, err := readCFADir(data, c, d)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.CorruptData, op, err)
	}

	f.Meta = readMetadata(c, d)
	f.Meta.Compression, _ = intOf(d, tagCompression, compressionNone)
	loadExif(data, &f.Meta)

	return f, nil
}

func intOf(d ifd, id uint16, def int64) (int, error) {
	v, err := d.int(id, def)
	return int(v), err
}

func readCFADir(data []byte, c *container, d ifd) (*RawFrame, error) {
	op := "rawfile.readCFADir"

	width, err := intOf(d, tagImageWidth, 0)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	height, err := intOf(d, tagImageLength, 0)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%s has dimensions %dx%d", d.name, width, height)
	}
	// Every sample costs at least one bit, however it is encoded.
	if int64(width)*int64(height) > 8*int64(len(data)) {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%s claims %dx%d samples in a %d byte file", d.name, width, height, len(data))
	}

	bps, err := intOf(d, tagBitsPerSample, 1)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if bps < 8 || bps > 16 {
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "%d bits per sample", bps)
	}
	if spp, _ := intOf(d, tagSamplesPerPixel, 1); spp != 1 {
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "CFA image with %d samples per pixel", spp)
	}
	compression, err := intOf(d, tagCompression, compressionNone)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if compression != compressionNone && compression != compressionLosslessJPEG {
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "compression %d", compression)
	}

	blocks, err := layout(d, width, height)
	if err != nil {
		return nil, err
	}
	samples, err := unpack(data, c.order, blocks, width, height, bps, compression)
	if err != nil {
		return nil, err
	}

	table, err := d.ints(tagLinearizationTable)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if err := checkLinearization(table); err != nil {
		return nil, err
	}
	linearize(samples, table)

	samples, width, height, err = cropActiveArea(d, samples, width, height)
	if err != nil {
		return nil, err
	}

	cfa, err := readCFAPattern(d)
	if err != nil {
		return nil, err
	}
	if err := cfa.Validate(width, height); err != nil {
		return nil, err
	}

	f := &RawFrame{
		Width:    width,
		Height:   height,
		Samples:  samples,
		CFA:      cfa,
		BitDepth: bps,
	}

	if err := readLevels(d, f); err != nil {
		return nil, err
	}

	log.Printf("rawfile: %s: %dx%d %d-bit, compression %d, %d blocks, CFA %s", d.name, width, height, bps,
		compression, len(blocks), cfa)

	return f, nil
}

// cropActiveArea trims the frame to the DNG ActiveArea (top, left,
// bottom, right), if there is one.
func cropActiveArea(d ifd, samples []uint16, w, h int) ([]uint16, int, int, error) {
	op := "rawfile.cropActiveArea"
	area, err := d.ints(tagActiveArea)
	if err != nil {
		return nil, 0, 0, rawerr.New(rawerr.CorruptData, op, err)
	}
	if area == nil {
		return samples, w, h, nil
	}
	if len(area) != 4 {
		return nil, 0, 0, rawerr.Errorf(rawerr.CorruptData, op, "ActiveArea has %d values", len(area))
	}

	top, left, bottom, right := int(area[0]), int(area[1]), int(area[2]), int(area[3])
	if top < 0 || left < 0 || bottom > h || right > w || top >= bottom || left >= right {
		return nil, 0, 0, rawerr.Errorf(rawerr.CorruptData, op, "ActiveArea %v outside %dx%d", area, w, h)
	}
	if top == 0 && left == 0 && bottom == h && right == w {
		return samples, w, h, nil
	}

	cw, ch := right-left, bottom-top
	out := make([]uint16, cw*ch)
	for y := 0; y < ch; y++ {
		copy(out[y*cw:(y+1)*cw], samples[(top+y)*w+left:(top+y)*w+right])
	}
	return out, cw, ch, nil
}

// readCFAPattern decodes CFARepeatPatternDim (rows, cols) and CFAPattern,
// remapping the pattern's color indices through CFAPlaneColor.
func readCFAPattern(d ifd) (CFAPattern, error) {
	op := "rawfile.readCFAPattern"

	dim, err := d.ints(tagCFARepeatPatternDim)
	if err != nil {
		return CFAPattern{}, rawerr.New(rawerr.MalformedCFA, op, err)
	}
	rows, cols := 2, 2
	if dim != nil {
		if len(dim) != 2 {
			return CFAPattern{}, rawerr.Errorf(rawerr.MalformedCFA, op, "CFARepeatPatternDim has %d values", len(dim))
		}
		rows, cols = int(dim[0]), int(dim[1])
	}

	pattern, err := d.ints(tagCFAPattern)
	if err != nil {
		return CFAPattern{}, rawerr.New(rawerr.MalformedCFA, op, err)
	}
	if pattern == nil {
		return CFAPattern{}, rawerr.Errorf(rawerr.MalformedCFA, op, "%s has no CFAPattern", d.name)
	}

	planes := []int64{int64(Red), int64(Green), int64(Blue)}
	if pc, err := d.ints(tagCFAPlaneColor); err != nil {
		return CFAPattern{}, rawerr.New(rawerr.MalformedCFA, op, err)
	} else if pc != nil {
		planes = pc
	}

	p := CFAPattern{Width: cols, Height: rows}
	for _, v := range pattern {
		if v < 0 || int(v) >= len(planes) {
			return CFAPattern{}, rawerr.Errorf(rawerr.MalformedCFA, op, "CFAPattern index %d with %d planes", v, len(planes))
		}
		p.Colors = append(p.Colors, Channel(planes[v]))
	}

	if rows <= 0 || cols <= 0 || len(p.Colors) != rows*cols {
		return CFAPattern{}, rawerr.Errorf(rawerr.MalformedCFA, op, "CFAPattern has %d values for a %dx%d tile", len(p.Colors), cols, rows)
	}
	return p, nil
}

// readLevels works out the per color black and white levels. BlackLevel
// can repeat over a grid of its own (BlackLevelRepeatDim); we average the
// sites of each color together.
func readLevels(d ifd, f *RawFrame) error {
	op := "rawfile.readLevels"

	white := float64(uint32(1)<<uint(f.BitDepth) - 1)
	f.WhiteLevel = [3]float64{white, white, white}
	if wl, err := d.floats(tagWhiteLevel); err != nil {
		return rawerr.New(rawerr.CorruptData, op, err)
	} else if len(wl) > 0 {
		f.WhiteLevel = [3]float64{wl[0], wl[0], wl[0]}
	}

	bl, err := d.floats(tagBlackLevel)
	if err != nil {
		return rawerr.New(rawerr.CorruptData, op, err)
	}
	if len(bl) > 0 {
		rows, cols := 1, 1
		if dim, err := d.ints(tagBlackLevelRepeatDim); err != nil {
			return rawerr.New(rawerr.CorruptData, op, err)
		} else if len(dim) == 2 && dim[0] > 0 && dim[1] > 0 {
			rows, cols = int(dim[0]), int(dim[1])
		}
		if len(bl) < rows*cols {
			return rawerr.Errorf(rawerr.CorruptData, op, "BlackLevel has %d values for a %dx%d repeat", len(bl), cols, rows)
		}

		pw, ph := lcm(cols, f.CFA.Width), lcm(rows, f.CFA.Height)
		sum, n := [3]float64{}, [3]float64{}
		for y := 0; y < ph; y++ {
			for x := 0; x < pw; x++ {
				ch := f.CFA.At(x, y)
				sum[ch] += bl[(y%rows)*cols+x%cols]
				n[ch]++
			}
		}
		for ch := range sum {
			if n[ch] > 0 {
				f.BlackLevel[ch] = sum[ch] / n[ch]
			}
		}
	}

	for ch := range f.BlackLevel {
		if f.WhiteLevel[ch] <= f.BlackLevel[ch] {
			return rawerr.Errorf(rawerr.CorruptData, op, "%s white level %.0f is not above black level %.0f",
				Channel(ch), f.WhiteLevel[ch], f.BlackLevel[ch])
		}
	}
	return nil
}

func readMetadata(c *container, d ifd) Metadata {
	ifd0 := c.dirs[0]
	m := Metadata{
		Make:   ifd0.str(tagMake),
		Model:  ifd0.str(tagModel),
		Source: d.name,
	}

	if o, err := ifd0.int(tagOrientation, 0); err == nil && o >= 1 && o <= 8 {
		m.Orientation = Orientation(o)
	}
	if iso, err := ifd0.int(tagISOSpeedRatings, 0); err == nil && iso > 0 {
		m.ISO = int(iso)
	}

	if cm, err := c.pickMatrix(tagColorMatrix1, tagColorMatrix2); err != nil {
		log.Printf("rawfile: ignoring ColorMatrix: %v", err)
	} else if len(cm) == 9 {
		m.ColorMatrix = cm
	}
	if fm, err := c.pickMatrix(tagForwardMatrix1, tagForwardMatrix2); err != nil {
		log.Printf("rawfile: ignoring ForwardMatrix: %v", err)
	} else if len(fm) == 9 {
		m.ForwardMatrix = fm
	}
	if asn, err := ifd0.floats(tagAsShotNeutral); err != nil {
		log.Printf("rawfile: ignoring AsShotNeutral: %v", err)
	} else if len(asn) == 3 {
		m.AsShotNeutral = asn
	}

	return m
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int { return a / gcd(a, b) * b }
