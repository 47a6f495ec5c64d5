package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xplshn/rvbe/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatStrict Feature = iota
	FeatAnnotate
	FeatValidate
	FeatCount
)

type Warning int

const (
	WarnUnresolved Warning = iota
	WarnSpill
	WarnFrame
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// DefaultRegisters is the allocatable pool, in allocation preference order.
var DefaultRegisters = []string{
	"t2", "t3", "t4", "t5", "t6",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6",
	"s0", "s1", "s2", "s3", "s4", "s5",
	"s6", "s7", "s8", "s9", "s10", "s11",
}

const (
	BackendRV32 = "rv32"
	BackendQBE  = "qbe"
)

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	BackendName   string
	BackendTarget string
	TargetArch    string

	WordSize    int
	FrameSize   int
	Registers   []string
	Scratch     [2]string
	ReturnReg   string
	StackReg    string
	SyscallReg  string
	ExitSyscall int32
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),

		BackendName:   BackendRV32,
		BackendTarget: BackendRV32,
		TargetArch:    "riscv32",

		WordSize:    4,
		FrameSize:   1024,
		Registers:   append([]string(nil), DefaultRegisters...),
		Scratch:     [2]string{"t0", "t1"},
		ReturnReg:   "a0",
		StackReg:    "sp",
		SyscallReg:  "a7",
		ExitSyscall: 93,
	}

	features := map[Feature]Info{
		FeatStrict:   {"strict", false, "Fail translation on unresolved references instead of emitting a default."},
		FeatAnnotate: {"annotate", false, "Annotate spill, reload and write-back instructions with comments."},
		FeatValidate: {"validate", true, "Reject structurally malformed IR before translation."},
	}

	warnings := map[Warning]Info{
		WarnUnresolved: {"unresolved", true, "Warn when a name has no interval or stack slot."},
		WarnSpill:      {"spill", false, "Report every value evicted from its register."},
		WarnFrame:      {"frame", true, "Warn when a function uses more than half of its stack frame."},
		WarnExtra:      {"extra", true, "Enable extra miscellaneous warnings (e.g., unrecognized flags)."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend from a "backend[/target]" string. An empty
// string selects the native rv32 backend. For qbe without an explicit
// target the host target reported by libqbe is used.
func (c *Config) SetTarget(goos, goarch, target string) error {
	backend, sub, _ := strings.Cut(target, "/")
	switch backend {
	case "", BackendRV32:
		if sub != "" && sub != BackendRV32 { return fmt.Errorf("rv32 backend has no target '%s'", sub) }
		c.BackendName, c.BackendTarget, c.TargetArch = BackendRV32, BackendRV32, "riscv32"
	case BackendQBE:
		c.BackendName = BackendQBE
		if sub == "" {
			c.BackendTarget = libqbe.DefaultTarget(goos, goarch)
			fmt.Fprintf(os.Stderr, "rvbe: info: no qbe target specified, defaulting to host target '%s'\n", c.BackendTarget)
		} else {
			c.BackendTarget = sub
		}
		c.TargetArch = goarch
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'rv32', 'qbe'", backend)
	}
	return nil
}

// SetRegisters replaces the allocatable pool.
func (c *Config) SetRegisters(names []string) error {
	if len(names) == 0 { return fmt.Errorf("register pool cannot be empty") }
	seen := make(map[string]bool)
	for _, n := range names {
		if n == "" { return fmt.Errorf("empty register name") }
		if seen[n] { return fmt.Errorf("register '%s' listed twice", n) }
		if n == c.Scratch[0] || n == c.Scratch[1] || n == c.StackReg || n == c.SyscallReg {
			return fmt.Errorf("register '%s' is reserved", n)
		}
		seen[n] = true
	}
	c.Registers = append([]string(nil), names...)
	return nil
}

func (c *Config) SetFrameSize(size int) error {
	if size <= 0 || size%c.WordSize != 0 {
		return fmt.Errorf("frame size %d must be a positive multiple of %d", size, c.WordSize)
	}
	c.FrameSize = size
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag applies a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name>
// flag. It reports whether the name was recognized.
func (c *Config) ApplyFlag(flag string) bool {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		name = trimmed
		isWarning = true
	}
	if isNo { name = strings.TrimPrefix(name, "no-") }

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return true
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return true
		}
		return false
	}
	if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
		return true
	}
	return false
}

// ProcessFlags applies -Wall/-Wno-all first so that specific flags override them.
func (c *Config) ProcessFlags(flags []string) (unknown []string) {
	isAll := func(f string) bool { return f == "Wall" || f == "Wno-all" }
	for _, f := range flags {
		if isAll(strings.TrimPrefix(f, "-")) { c.ApplyFlag(f) }
	}
	for _, f := range flags {
		if isAll(strings.TrimPrefix(f, "-")) { continue }
		if !c.ApplyFlag(f) { unknown = append(unknown, f) }
	}
	return unknown
}

// SetupFlagGroups registers -W and -F flag groups on fs. The returned
// entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	fs.AddFlagGroup("Warning Flags", "warning flag", warnings)
	fs.AddFlagGroup("Feature Flags", "feature flag", features)
	return warnings, features
}

// ApplyFlagGroups copies parsed group flags back into the configuration.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, e := range warnings {
		if e.Disabled != nil && *e.Disabled {
			c.SetWarning(Warning(i), false)
		} else if e.Enabled != nil {
			c.SetWarning(Warning(i), *e.Enabled)
		}
	}
	for i, e := range features {
		if e.Disabled != nil && *e.Disabled {
			c.SetFeature(Feature(i), false)
		} else if e.Enabled != nil {
			c.SetFeature(Feature(i), *e.Enabled)
		}
	}
}

// Describe lists features and warnings with their state, sorted by name.
func (c *Config) Describe() string {
	var sb strings.Builder
	write := func(title string, infos []Info) {
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		fmt.Fprintf(&sb, "%s:\n", title)
		for _, info := range infos {
			fmt.Fprintf(&sb, "  - %-12s: %v (%s)\n", info.Name, info.Enabled, info.Description)
		}
	}
	var fs, ws []Info
	for _, v := range c.Features {
		fs = append(fs, v)
	}
	for _, v := range c.Warnings {
		ws = append(ws, v)
	}
	write("Features", fs)
	write("Warnings", ws)
	return sb.String()
}
