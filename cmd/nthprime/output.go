package main

import (
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printer formats results for a terminal or for a pipe.
type printer struct {
	w      io.Writer
	group  bool
	styled bool
}

func newPrinter(w io.Writer, mode string) printer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	p := printer{w: w, styled: tty}
	switch mode {
	case "always":
		p.group = true
	case "never":
		p.group = false
	default:
		p.group = tty
	}
	return p
}

func (p printer) format(v *big.Int) string {
	s := v.String()
	if p.group {
		s = humanize.BigComma(v)
	}
	if p.styled {
		s = valueStyle.Render(s)
	}
	return s
}

func (p printer) label(s string) string {
	if p.styled {
		return labelStyle.Render(s)
	}
	return s
}

func (p printer) value(v *big.Int) {
	fmt.Fprintln(p.w, p.format(v))
}

func (p printer) pair(n, prime *big.Int) {
	fmt.Fprintf(p.w, "%s\t%s\n", p.label(n.String()), p.format(prime))
}

func (p printer) labeled(name string, v *big.Int) {
	fmt.Fprintf(p.w, "%s\t%s\n", p.label(name), p.format(v))
}

func (p printer) verdict(k *big.Int, prime, exact bool) {
	switch {
	case !prime:
		fmt.Fprintf(p.w, "%s composite\n", p.format(k))
	case exact:
		fmt.Fprintf(p.w, "%s prime\n", p.format(k))
	default:
		fmt.Fprintf(p.w, "%s probable prime\n", p.format(k))
	}
}
