package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

type badge struct {
	label  string
	colors text.Colors
}

var badges = map[statusKind]badge{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

const statusLabelWidth = 18

var titleCaser = cases.Title(language.Und)

// titleLabel turns snake_case identifiers such as stream kinds and catalogue
// statuses into display labels.
func titleLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	b, ok := badges[kind]
	if !ok {
		b = badges[statusInfo]
	}
	tag := "[" + b.label + "]"
	if colorize {
		tag = b.colors.Sprint(tag)
	}
	line := "  " + text.Pad(label+":", statusLabelWidth, ' ') + " " + tag
	if message != "" {
		line += " " + message
	}
	return line
}

func printSection(out io.Writer, title string, colorize bool) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if colorize {
		heading = text.Colors{text.FgBlue, text.Bold}.Sprint(heading)
	}
	fmt.Fprintln(out, heading)
	fmt.Fprintln(out, rule)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
