package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	success2Style = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))   // green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))   // red
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))  // yellow
	debugStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")) // light grey
)

var StyleSymbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"arrow":   "→",
	"bullet":  "•",
}

// PrintError writes a styled one-line message to stderr, for problems found
// before a Reporter exists.
func PrintError(text string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(StyleSymbols["fail"]+" "+text))
}

func PrintSuccess(text string) {
	fmt.Fprintln(os.Stderr, success2Style.Render(StyleSymbols["pass"]+" "+text))
}

func PrintWarning(text string) {
	fmt.Fprintln(os.Stderr, warningStyle.Render(StyleSymbols["warning"]+" "+text))
}
