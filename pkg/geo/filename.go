package geo

import (
	"strconv"
	"strings"
)

// FileName builds "<style>-<w>-<h>-[<tx>x<ty>-]<scale>-<renderer><ext>".
// Width and height are divided by the scale factor; the tile segment is
// omitted for a single tile.
func FileName(style string, size, tiles MapSize, scale float64, renderer, ext string) string {
	var b strings.Builder
	b.WriteString(style)
	b.WriteByte('-')
	b.WriteString(formatG(float64(size.Width) / scale))
	b.WriteByte('-')
	b.WriteString(formatG(float64(size.Height) / scale))
	b.WriteByte('-')
	if tiles.Tiled() {
		b.WriteString(strconv.Itoa(tiles.Width))
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(tiles.Height))
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatFloat(scale, 'f', 1, 64))
	b.WriteByte('-')
	b.WriteString(renderer)
	b.WriteString(ext)
	return b.String()
}

// formatG formats like an iostream with default flags: six significant
// digits, no trailing zeros.
func formatG(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
