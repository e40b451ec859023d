package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                          _                  _       _     _   `, "#818cf8"},
	{`   __ _  __ _  ___ _ __ | |___      ___ __(_) __ _| |__ | |_ `, "#a78bfa"},
	{`  / _' |/ _' |/ _ \ '_ \| __\ \ /\ / / '__| |/ _' | '_ \| __|`, "#c084fc"},
	{` | (_| | (_| |  __/ | | | |_ \ V  V /| |  | | (_| | | | | |_ `, "#e879f9"},
	{`  \__,_|\__, |\___|_| |_|\__| \_/\_/ |_|  |_|\__, |_| |_|\__|`, "#f472b6"},
	{`        |___/                                |___/           `, "#fb7185"},
}

// PrintBanner writes the ASCII art banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.Profile
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w)
}
