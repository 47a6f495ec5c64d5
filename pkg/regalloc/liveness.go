package regalloc

import "github.com/xplshn/rvbe/pkg/ir"

// Analyze walks block once and records, for every named non-global value,
// the position of its first occurrence and of its last use. isGlobal is
// consulted for operands only; an alloca in the block shadows its name for
// the rest of the walk, matching what the emitter will see.
func Analyze(block *ir.BasicBlock, isGlobal func(name string) bool) *Table {
	t := NewTable()
	shadowed := make(map[string]bool)
	global := func(name string) bool { return !shadowed[name] && isGlobal(name) }

	for pos, in := range block.Instructions {
		if in.Op == ir.OpOther { continue }

		if in.Result != nil {
			t.Def(in.Result.Name, pos)
			if in.Op == ir.OpAlloca { shadowed[in.Result.Name] = true }
		}

		for i, arg := range in.Args {
			name, ok := ir.NameOf(arg)
			if !ok || name == "" || global(name) { continue }
			// A store overwrites its destination; it does not read it.
			if in.Op == ir.OpStore && i == 1 {
				t.Def(name, pos)
				continue
			}
			t.Use(name, pos)
		}
	}
	return t
}

// CrossBlock returns the names mentioned in more than one block of fn.
func CrossBlock(fn *ir.Func) map[string]bool {
	firstBlock := make(map[string]int)
	cross := make(map[string]bool)

	note := func(name string, b int) {
		if first, ok := firstBlock[name]; !ok {
			firstBlock[name] = b
		} else if first != b {
			cross[name] = true
		}
	}

	for b, block := range fn.Blocks {
		for _, in := range block.Instructions {
			if in.Op == ir.OpOther { continue }
			if in.Result != nil { note(in.Result.Name, b) }
			for _, arg := range in.Args {
				if name, ok := ir.NameOf(arg); ok && name != "" { note(name, b) }
			}
		}
	}
	return cross
}
