// File: internal/maze/render.go
package maze

import (
	"strings"
	"unicode"
)

var cellSymbols = map[int]rune{
	Wall:     '█',
	Path:     '·',
	Start:    'S',
	Target:   'T',
	Solution: '★',
	ErrCell:  '✗',
}

// Render pretty-prints a field for debugging and the offline plan command.
// Node cells still marked PATH show the first letter of their identifier.
func Render(grid [][]int, nodePos map[string]Coord) string {
	labels := make(map[Coord]rune, len(nodePos))
	for id, pos := range nodePos {
		for _, r := range id {
			labels[pos] = unicode.ToUpper(r)
			break
		}
	}

	var b strings.Builder
	for r, row := range grid {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c, cell := range row {
			if label, ok := labels[Coord{r, c}]; ok && cell == Path {
				b.WriteRune(label)
				continue
			}
			sym, ok := cellSymbols[cell]
			if !ok {
				sym = '?'
			}
			b.WriteRune(sym)
		}
	}
	return b.String()
}
