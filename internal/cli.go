package internal

import (
	"strings"

	"github.com/davidmdm/ansi"
)

var (
	cyan   = ansi.MakeStyle(ansi.FgCyan)
	yellow = ansi.MakeStyle(ansi.FgYellow)
)

// Colorize styles help text lines prefixed with a color directive such as "!cyan".
func Colorize(value string) string {
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if len(line) == 0 || line[0] != '!' {
			continue
		}

		color, rest, _ := strings.Cut(line, " ")
		switch color {
		case "!cyan":
			lines[i] = cyan.Sprint(rest)
		case "!yellow":
			lines[i] = yellow.Sprint(rest)
		default:
			lines[i] = rest
		}
	}
	return strings.Join(lines, "\n")
}
