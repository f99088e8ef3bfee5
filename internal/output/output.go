// Package output renders CLI results to the terminal. Styling is
// dropped automatically when stdout is not a tty.
package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Writer prints styled lines to stdout/stderr.
type Writer struct {
	styled bool
}

// New creates a Writer, detecting whether stdout is a terminal.
func New() *Writer {
	return &Writer{styled: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())}
}

func (w *Writer) render(style lipgloss.Style, s string) string {
	if !w.styled {
		return s
	}
	return style.Render(s)
}

// Successf prints a success line to stdout.
func (w *Writer) Successf(format string, args ...any) {
	fmt.Println(w.render(successStyle, fmt.Sprintf(format, args...)))
}

// Errorf prints an error line to stderr.
func (w *Writer) Errorf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, w.render(errorStyle, fmt.Sprintf(format, args...)))
}

// Dimf prints a secondary line to stdout.
func (w *Writer) Dimf(format string, args ...any) {
	fmt.Println(w.render(dimStyle, fmt.Sprintf(format, args...)))
}

// Plainf prints an unstyled line to stdout.
func (w *Writer) Plainf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}
