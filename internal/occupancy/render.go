package occupancy

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	defaultWidth = 80
	// labelWidth is the space taken by everything on a line except the bar.
	labelWidth = 24
	minBar     = 10
	maxBar     = 60
)

// TerminalWidth returns the column count of f, or 80 when f is not a
// terminal.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Render writes the profile as one bar per hour, scaled to width columns.
func Render(w io.Writer, p *Profile, width int) error {
	bar := min(max(width-labelWidth, minBar), maxBar)

	var b strings.Builder
	fmt.Fprintf(&b, "Popular times for %s (capacity %d, %d samples)\n", p.LotID, p.Capacity, p.Samples)
	for h, rate := range p.Hours {
		filled := int(math.Round(rate / 100 * float64(bar)))
		filled = min(max(filled, 0), bar)
		fmt.Fprintf(&b, "%02d:00 |%s%s| %6.2f%% %s\n",
			h,
			strings.Repeat("#", filled),
			strings.Repeat(" ", bar-filled),
			rate,
			BandOf(rate),
		)
	}
	if p.PeakHour < 0 {
		b.WriteString("no events recorded\n")
	} else {
		fmt.Fprintf(&b, "peak %02d:00 at %.2f%% (%s, %s)\n", p.PeakHour, p.Max, p.PeakBand, p.PeakBand.Color())
	}

	_, err := io.WriteString(w, b.String())
	return err
}
