package sheet

import (
	"strings"

	"github.com/spigell/reply-tracker/internal/directive"
)

// Style is the visual tag carried by a cell.
type Style string

const (
	StyleNone       Style = ""
	StyleDarkRed    Style = "dark-red"
	StyleDarkYellow Style = "dark-yellow"
	StyleGreen      Style = "green"
	StyleBlue       Style = "blue"
)

// fill colours of the tagged styles, RGB without alpha.
var palette = map[Style]string{
	StyleDarkRed:    "8B0000",
	StyleDarkYellow: "808000",
	StyleGreen:      "008000",
	StyleBlue:       "0000FF",
}

// StyleFor returns the style applied to an outcome cell.
func StyleFor(o directive.Outcome) Style {
	switch o {
	case directive.Rejected:
		return StyleDarkRed
	case directive.ScheduledInterview:
		return StyleDarkYellow
	case directive.Confirmed:
		return StyleGreen
	default:
		return StyleBlue
	}
}

// ParseStyle validates a style tag given on the command line or in config.
func ParseStyle(s string) (Style, bool) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if style == StyleNone || style == "none" {
		return StyleNone, true
	}
	if _, ok := palette[style]; ok {
		return style, true
	}
	return StyleNone, false
}

func styleByColor(color string) Style {
	color = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	if len(color) == 8 {
		color = color[2:]
	}
	for style, rgb := range palette {
		if rgb == color {
			return style
		}
	}
	return StyleNone
}
