// Package config loads the kernel's boot configuration: the scheduler
// policy, disk image paths, and frame-pool sizing that pintos's own
// threads/init.c takes as command-line options (-mlfqs, -filesys=NAME,
// -ul=COUNT, ...). This kernel keeps the same knobs but also accepts
// them from an optional TOML file, the way the rest of the pack
// (biscuit's own boot parameters aside) favors a real config-file
// library over hand-rolled flag parsing for anything with more than a
// couple of fields.
package config

import (
	"github.com/BurntSushi/toml"
)

// T is the kernel's full boot configuration. Default() holds pintos's
// own default for every field (the zero value, except for the three disk
// image names), so an absent config file (or an absent field within one)
// behaves exactly like omitting the corresponding command-line option.
type T struct {
	// Mlfqs selects the 4BSD MLFQS scheduler (proc.Policy4BSD) in place
	// of the default strict-priority scheduler, matching "-mlfqs".
	Mlfqs bool

	// Quiet mirrors "-q": it suppresses the boot-time log lines. Reboot
	// mirrors "-r": it makes the final shutdown log line read "rebooting"
	// instead of "powering off".
	Quiet  bool
	Reboot bool

	// FormatFilesys mirrors "-f": reformat the file system image before
	// running any action.
	FormatFilesys bool

	FilesysImage string // "-filesys=NAME", default "filesys.dsk"
	ScratchImage string // "-scratch=NAME"
	SwapImage    string // "-swap=NAME"

	RandomSeed int // "-rs=SEED"; 0 means "unspecified"

	// UserPageLimit bounds total frames available to user processes,
	// matching "-ul=COUNT"; 0 means "use the built-in default".
	UserPageLimit int

	Verbose bool

	// KstatFile, if non-empty, is a path the kernel writes a pprof
	// profile of per-thread CPU accounting to at shutdown. Pintos has
	// no equivalent option; empty means "don't dump".
	KstatFile string
}

// Default returns pintos's own defaults for every option the CLI does
// not override.
func Default() T {
	return T{
		FilesysImage: "filesys.dsk",
		ScratchImage: "scratch.dsk",
		SwapImage:    "swap.dsk",
	}
}

// Load reads a TOML file at path on top of Default(), leaving any field
// the file doesn't mention at its default.
func Load(path string) (T, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return T{}, err
	}
	return cfg, nil
}
