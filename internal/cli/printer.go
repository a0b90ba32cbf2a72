package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// printer renders command results on stdout. Styles degrade to plain text
// when 'w' is not a terminal.
type printer struct {
	w     io.Writer
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:     w,
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Width(18),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("203")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (p *printer) Blank() {
	fmt.Fprintln(p.w)
}

func (p *printer) Title(s string) {
	fmt.Fprintln(p.w, p.title.Render(s))
}

func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Field prints an indented "label: value" row with aligned values.
func (p *printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "   %s%v\n", p.label.Render(label+":"), value)
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.ok.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Hint(format string, args ...any) {
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf(format, args...)))
}

// Check renders a boolean state.
func (p *printer) Check(state bool, yes, no string) string {
	if state {
		return p.ok.Render("✓ " + yes)
	}
	return p.bad.Render("✗ " + no)
}

// formatUptime renders 'd' as hours and minutes.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
