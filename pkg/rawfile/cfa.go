package rawfile

import (
	"fmt"
	"strings"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// A Channel is the color of a single photosite. The values match the
// TIFF/EP CFAPattern encoding.
type Channel uint8

const (
	Red   Channel = 0
	Green Channel = 1
	Blue  Channel = 2
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "R"
	case Green:
		return "G"
	case Blue:
		return "B"
	}
	return fmt.Sprintf("?%d", uint8(c))
}

// A CFAPattern is the repeating tile of the color filter array; Colors
// is row-major, Width*Height long. The tile origin is the top-left of
// the (cropped) frame.
type CFAPattern struct {
	Width  int
	Height int
	Colors []Channel
}

// ParseCFAPattern understands the four 2x2 Bayer layouts by name, e.g.
// "RGGB". Case is ignored.
func ParseCFAPattern(s string) (CFAPattern, error) {
	s = strings.ToUpper(s)
	switch s {
	case "RGGB", "BGGR", "GRBG", "GBRG":
	default:
		return CFAPattern{}, rawerr.Errorf(rawerr.MalformedCFA, "rawfile.ParseCFAPattern", "unknown CFA pattern %q", s)
	}

	p := CFAPattern{Width: 2, Height: 2, Colors: make([]Channel, 4)}
	for i, r := range s {
		switch r {
		case 'R':
			p.Colors[i] = Red
		case 'G':
			p.Colors[i] = Green
		case 'B':
			p.Colors[i] = Blue
		}
	}
	return p, nil
}

// At returns the color of the photosite at (x,y).
func (p CFAPattern) At(x, y int) Channel {
	return p.Colors[(y%p.Height)*p.Width+(x%p.Width)]
}

func (p CFAPattern) String() string {
	str := ""
	for i, c := range p.Colors {
		if i > 0 && i%p.Width == 0 {
			str += "/"
		}
		str += c.String()
	}
	return str
}

// IsBayer2x2 is true for the classic layouts: a 2x2 tile with two greens
// on one diagonal.
func (p CFAPattern) IsBayer2x2() bool {
	if p.Width != 2 || p.Height != 2 || len(p.Colors) != 4 {
		return false
	}
	c := p.Colors
	switch {
	case c[0] == Green && c[3] == Green:
		return c[1] != Green && c[2] != Green && c[1] != c[2]
	case c[1] == Green && c[2] == Green:
		return c[0] != Green && c[3] != Green && c[0] != c[3]
	}
	return false
}

// Validate checks the tile against the frame it will be applied to. The
// demosaic border policy mirrors samples at the edges and reads the color
// of each mirrored site from the tile, so partial tiles at the right and
// bottom are fine; what we need is that a window the size of one tile
// always fits inside the frame, and that the tile actually holds R, G
// and B.
func (p CFAPattern) Validate(width, height int) error {
	op := "rawfile.CFAPattern.Validate"

	if p.Width <= 0 || p.Height <= 0 {
		return rawerr.Errorf(rawerr.MalformedCFA, op, "tile is %dx%d", p.Width, p.Height)
	}
	if len(p.Colors) != p.Width*p.Height {
		return rawerr.Errorf(rawerr.MalformedCFA, op, "tile is %dx%d but has %d colors", p.Width, p.Height, len(p.Colors))
	}

	seen := [3]bool{}
	for _, c := range p.Colors {
		if c > Blue {
			return rawerr.Errorf(rawerr.MalformedCFA, op, "tile color %d is not R, G or B", uint8(c))
		}
		seen[c] = true
	}
	if !seen[Red] || !seen[Green] || !seen[Blue] {
		return rawerr.Errorf(rawerr.MalformedCFA, op, "tile %s does not hold all of R, G and B", p)
	}

	if width < 2 || height < 2 || width < p.Width || height < p.Height {
		return rawerr.Errorf(rawerr.MalformedCFA, op, "frame %dx%d too small for %dx%d tile", width, height, p.Width, p.Height)
	}

	return nil
}
