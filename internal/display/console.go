// Package display renders command output as styled console blocks.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Console writes titled sections, status blocks and listings
type Console struct {
	out    io.Writer
	colors ColorSystem
	width  int
	quiet  bool
}

// NewConsole creates a console from config. A nil config uses the defaults.
func NewConsole(config *DisplayConfig) *Console {
	if config == nil {
		config = DefaultDisplayConfig()
	}
	config.SetDefaults()

	return &Console{
		out:    config.Writer,
		colors: NewColorSystem(config.GetColorTheme(), config.Writer, config.IsColorEnabled()),
		width:  terminalWidth(config.Writer, config.MaxWidth),
		quiet:  config.QuietMode,
	}
}

// GetColorTheme returns the ColorTheme based on the theme name
func (dc *DisplayConfig) GetColorTheme() ColorTheme {
	return GetThemeByName(dc.Theme)
}

// terminalWidth returns the width of out when it is a terminal, capped at max
func terminalWidth(out io.Writer, max int) int {
	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 && width < max {
			return width
		}
	}
	return max
}

// Title prints an underlined heading
func (c *Console) Title(message string) {
	if c.quiet {
		return
	}
	theme := c.colors.Theme()
	underline := strings.Repeat("=", utf8.RuneCountInString(message))
	fmt.Fprintf(c.out, "\n%s\n%s\n\n", c.colors.Colorize(message, theme.Title), c.colors.Colorize(underline, theme.Title))
}

// Listing prints items as a bullet list
func (c *Console) Listing(items []string) {
	if c.quiet {
		return
	}
	for _, item := range items {
		fmt.Fprintf(c.out, " * %s\n", item)
	}
	fmt.Fprintln(c.out)
}

// Note prints an informational block
func (c *Console) Note(message string) {
	if c.quiet {
		return
	}
	c.block(message, "NOTE", " ! ", c.colors.Theme().Note)
}

// Success prints an OK block
func (c *Console) Success(message string) {
	if c.quiet {
		return
	}
	c.block(message, "OK", " ", c.colors.Theme().Success)
}

// Warning prints a warning block
func (c *Console) Warning(message string) {
	if c.quiet {
		return
	}
	c.block(message, "WARNING", " ", c.colors.Theme().Warning)
}

// Error prints an error block. Errors are shown in quiet mode too.
func (c *Console) Error(message string) {
	c.block(message, "ERROR", " ", c.colors.Theme().Error)
}

// block renders "<prefix>[TYPE] message" with wrapped continuation lines
// aligned under the message text.
func (c *Console) block(message, blockType, prefix string, clr Color) {
	label := fmt.Sprintf("[%s] ", blockType)
	indent := strings.Repeat(" ", utf8.RuneCountInString(label))

	lines := wrap(message, c.width-utf8.RuneCountInString(prefix+label))
	if len(lines) == 0 {
		lines = []string{""}
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, line := range lines {
		head := indent
		if i == 0 {
			head = label
		}
		b.WriteString(c.colors.Colorize(strings.TrimRight(prefix+head+line, " "), clr))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	io.WriteString(c.out, b.String())
}

// wrap splits text into lines no longer than width, breaking on spaces.
// Words longer than width are kept whole.
func wrap(text string, width int) []string {
	if width < 10 {
		width = 10
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) > width {
				lines = append(lines, current)
				current = word
				continue
			}
			current += " " + word
		}
		lines = append(lines, current)
	}
	return lines
}
