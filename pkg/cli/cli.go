// Package cli parses the driver's command line: long and short options,
// plus -W/-F style groups of switches that come in enable/disable pairs.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Meta      string // placeholder shown after the name in help, e.g. <file>
	Default   string
	isBool    bool
	set       func(string) error
}

// FlagGroupEntry describes a -<Prefix><Name> / -<Prefix>no-<Name> pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type flagGroup struct {
	title   string
	kind    string
	entries []FlagGroupEntry
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	groups     []flagGroup
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{name: name, flags: make(map[string]*Flag), shorthands: make(map[string]*Flag)}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, meta string) {
	*p = value
	f.define(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Meta: meta, Default: value,
		set: func(s string) error { *p = s; return nil }})
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.define(&Flag{Name: name, Shorthand: shorthand, Usage: usage, isBool: true,
		set: func(s string) error {
			if s == "" {
				*p = true
				return nil
			}
			v, err := strconv.ParseBool(s)
			if err != nil { return fmt.Errorf("invalid boolean value '%s' for --%s", s, name) }
			*p = v
			return nil
		}})
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, meta string) {
	*p = value
	f.define(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Meta: meta, Default: strconv.Itoa(value),
		set: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil { return fmt.Errorf("invalid integer value '%s' for --%s", s, name) }
			*p = n
			return nil
		}})
}

// List collects every occurrence of the flag, in command-line order.
func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, meta string) {
	*p = value
	f.define(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Meta: meta, Default: strings.Join(value, ","),
		set: func(s string) error { *p = append(*p, s); return nil }})
}

// AddFlagGroup registers a -<Prefix><Name> and -<Prefix>no-<Name> switch for
// every entry. kind names a single member in the help page.
func (f *FlagSet) AddFlagGroup(title, kind string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil { f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage) }
		if e.Disabled != nil { f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "") }
	}
	f.groups = append(f.groups, flagGroup{title: title, kind: kind, entries: entries})
}

func (f *FlagSet) define(flag *Flag) {
	if _, ok := f.flags[flag.Name]; ok || flag.Name == "" { panic(fmt.Sprintf("bad or duplicate flag name %q", flag.Name)) }
	f.flags[flag.Name] = flag
	if flag.Shorthand == "" { return }
	if _, ok := f.shorthands[flag.Shorthand]; ok { panic(fmt.Sprintf("duplicate shorthand -%s", flag.Shorthand)) }
	f.shorthands[flag.Shorthand] = flag
}

// Parse accepts --name[=v] and -name[=v] for full names, -x[v] for
// shorthands, and "--" to end flag parsing.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		}
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}

		long := strings.HasPrefix(arg, "--")
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		flag, ok := f.flags[name]
		if !ok && !long {
			// -x or -xVALUE
			if flag, ok = f.shorthands[arg[1:2]]; ok {
				value, hasValue = arg[2:], len(arg) > 2
				if flag.isBool { value, hasValue = "", true }
			}
		}
		if !ok { return fmt.Errorf("unknown flag: %s", arg) }

		if !hasValue && !flag.isBool {
			if i+1 >= len(arguments) { return fmt.Errorf("flag needs an argument: %s", arg) }
			i++
			value = arguments[i]
		}
		if err := flag.set(value); err != nil { return err }
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App { return &App{Name: name, FlagSet: NewFlagSet(name)} }

// Run parses arguments and calls Action with the positional ones. A parse
// error is printed with a short usage line and returned.
func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\nUsage: %s %s\nRun '%s --help' for all options.\n", a.Name, err, a.Name, a.Synopsis, a.Name)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action == nil { return nil }
	return a.Action(a.FlagSet.Args())
}

func (f *Flag) label() string {
	s := "--" + f.Name
	if f.Shorthand != "" { s = "-" + f.Shorthand + ", " + s }
	if !f.isBool && f.Meta != "" { s += " <" + f.Meta + ">" }
	return s
}

func (a *App) writeHelp(w io.Writer) {
	grouped := make(map[string]bool)
	left := 0
	for _, g := range a.FlagSet.groups {
		for _, e := range g.entries {
			grouped[e.Prefix+e.Name], grouped[e.Prefix+"no-"+e.Name] = true, true
			left = max(left, len(e.Name))
		}
	}
	var options []*Flag
	for _, flag := range a.FlagSet.flags {
		if grouped[flag.Name] { continue }
		options = append(options, flag)
		left = max(left, len(flag.label()))
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Name < options[j].Name })

	var sb strings.Builder
	width := terminalWidth()
	fmt.Fprintf(&sb, "\n    Synopsis\n        %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		sb.WriteString("\n    Description\n")
		for _, l := range wrapText(a.Description, width-8) {
			sb.WriteString("        " + l + "\n")
		}
	}

	sb.WriteString("\n    Options\n")
	for _, flag := range options {
		right := ""
		if flag.Default != "" { right = "|" + flag.Default + "|" }
		writeEntry(&sb, width, left, flag.label(), flag.Usage, right)
	}

	for _, g := range a.FlagSet.groups {
		if len(g.entries) == 0 { continue }
		prefix := g.entries[0].Prefix
		fmt.Fprintf(&sb, "\n    %s\n", g.title)
		writeEntry(&sb, width, left, "-"+prefix+"<name>", "Enable a specific "+g.kind, "")
		writeEntry(&sb, width, left, "-"+prefix+"no-<name>", "Disable a specific "+g.kind, "")
		entries := append([]FlagGroupEntry(nil), g.entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			mark := "|-|"
			if e.Enabled != nil && *e.Enabled { mark = "|x|" }
			writeEntry(&sb, width, left, e.Name, e.Usage, mark)
		}
	}
	io.WriteString(w, sb.String())
}

func writeEntry(sb *strings.Builder, width, left int, name, usage, right string) {
	const indent = "        "
	avail := max(width-len(indent)-left-len(right)-3, 10)
	lines := wrapText(usage, avail)
	if len(lines) == 0 { lines = []string{""} }
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent, left, name, avail, lines[0], right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent, left, name, lines[0])
	}
	for _, l := range lines[1:] {
		fmt.Fprintf(sb, "%s%*s %s\n", indent, left, "", l)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil { return 80 }
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		if line != "" && len(line)+1+len(word) > maxWidth {
			lines = append(lines, line)
			line = ""
		}
		if line != "" { line += " " }
		line += word
	}
	if line != "" { lines = append(lines, line) }
	return lines
}
