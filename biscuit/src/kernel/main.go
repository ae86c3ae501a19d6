// Command kernel boots the system: it mounts (or formats) the file
// system image, starts the scheduler, spawns an init thread that runs
// the action list given on the command line, and runs until every
// thread has exited. The option and action vocabulary -- "-q -r -f
// -filesys=NAME -scratch=NAME -swap=NAME -rs=SEED -mlfqs -ul=COUNT" and
// "run 'PROG ARGS' | ls | cat FILE | rm FILE | extract | append FILE" --
// matches Pintos's threads/init.c exactly, since spec.md §6 inherits
// that surface unchanged; config.T adds an optional TOML file as a
// second way to set the same knobs, the way the rest of this kernel
// favors a real config library over ad-hoc flag state for anything with
// more than a couple of fields.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cache"
	"config"
	"fs"
	"klog"
	"kstat"
	"ktrap"
	"mem"
	"proc"
)

// defaultFrames is the frame pool's size in the absence of "-ul=COUNT".
const defaultFrames = 8192 // 32MiB of simulated physical memory

func main() {
	cfg := config.Default()
	actions := parseArgs(os.Args[1:], &cfg)

	klog.SetVerbose(cfg.Verbose)

	nframes := defaultFrames
	if cfg.UserPageLimit > 0 {
		nframes = cfg.UserPageLimit
	}
	mem.Init(nframes)

	policy := proc.PolicyPriority
	if cfg.Mlfqs {
		policy = proc.Policy4BSD
	}
	proc.Init(policy)

	disk, err := cache.OpenFileDisk(cfg.FilesysImage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: open %s: %v\n", cfg.FilesysImage, err)
		os.Exit(1)
	}

	var fsys *fs.Fs_t
	if cfg.FormatFilesys {
		if !cfg.Quiet {
			klog.Infof("formatting file system %s", cfg.FilesysImage)
		}
		fsys = fs.Format(disk, fs.DefaultDiskSectors)
	} else {
		fsys = fs.Mount(disk, fs.DefaultDiskSectors)
	}

	k := &ktrap.Kernel{Fs: fsys, EntryFactory: newEntryFactory()}

	if !cfg.Quiet {
		klog.Infof("kernel booted, policy=%v mlfqs=%v", policy, cfg.Mlfqs)
	}

	_, serr := proc.Spawn(nil, "init", nil, runActions(k, actions))
	if serr != 0 {
		fmt.Fprintf(os.Stderr, "kernel: spawn init: %v\n", serr)
		os.Exit(1)
	}

	proc.Sched.Start()

	if cfg.KstatFile != "" {
		if err := kstat.Dump(cfg.KstatFile); err != nil {
			fmt.Fprintf(os.Stderr, "kernel: kstat: %v\n", err)
		}
	}

	fsys.Sync()
	if cfg.Reboot {
		klog.Infof("rebooting")
	} else {
		klog.Infof("powering off")
	}
}

// action is one element of spec.md §6's action list: a name ("run",
// "ls", "cat", "rm", "extract", "append") plus however many following
// non-option arguments that action consumes.
type action struct {
	name string
	args []string
}

// actionArgc is the number of arguments each action name consumes,
// mirroring Pintos's action_table in threads/init.c.
var actionArgc = map[string]int{
	"run":     1,
	"ls":      0,
	"cat":     1,
	"rm":      1,
	"extract": 0,
	"append":  1,
}

// parseArgs splits the command line into leading "-option[=value]"
// tokens (applied to cfg) followed by an action list, the way Pintos's
// parse_options/read_command_line pair does. "-h" prints usage and
// exits immediately, matching threads/init.c.
func parseArgs(args []string, cfg *config.T) []action {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		opt := args[i]
		i++
		name, val, hasVal := strings.Cut(opt[1:], "=")
		switch name {
		case "h":
			usage()
			os.Exit(0)
		case "q":
			cfg.Quiet = true
		case "r":
			cfg.Reboot = true
		case "f":
			cfg.FormatFilesys = true
		case "v":
			cfg.Verbose = true
		case "filesys":
			cfg.FilesysImage = val
		case "scratch":
			cfg.ScratchImage = val
		case "swap":
			cfg.SwapImage = val
		case "rs":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.RandomSeed = n
			}
		case "mlfqs":
			cfg.Mlfqs = true
		case "ul":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.UserPageLimit = n
			}
		case "kstat":
			cfg.KstatFile = val
		case "config":
			if hasVal {
				if loaded, err := config.Load(val); err == nil {
					*cfg = loaded
				} else {
					fmt.Fprintf(os.Stderr, "kernel: -config=%s: %v\n", val, err)
				}
			}
		default:
			fmt.Fprintf(os.Stderr, "kernel: unrecognized option -%s\n", name)
		}
	}

	var acts []action
	for i < len(args) {
		name := args[i]
		i++
		argc, ok := actionArgc[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "kernel: unrecognized action %q\n", name)
			continue
		}
		a := action{name: name}
		for j := 0; j < argc && i < len(args); j++ {
			a.args = append(a.args, args[i])
			i++
		}
		acts = append(acts, a)
	}
	return acts
}

func usage() {
	fmt.Println(`kernel [OPTION...] [ACTION...]
Options:
  -h                  print this help and exit
  -q                  quiet boot (skip boot banner)
  -r                  reboot (rather than power off) when actions finish
  -f                  format the file system before running actions
  -filesys=NAME       file system disk image (default filesys.dsk)
  -scratch=NAME       scratch disk image (default scratch.dsk)
  -swap=NAME          swap disk image (default swap.dsk)
  -rs=SEED            random seed
  -mlfqs              use the 4BSD MLFQS scheduler
  -ul=COUNT           limit frame pool to COUNT pages
  -kstat=PATH         write a pprof profile of per-thread CPU time to PATH at shutdown
  -config=PATH        load additional options from a TOML file
Actions:
  run 'PROG ARGS'     execute PROG with the given argument string
  ls                  list the root directory
  cat FILE            print FILE's contents
  rm FILE             remove FILE
  extract             (unsupported: no tar archive format in this image)
  append FILE         (unsupported: no tar archive format in this image)`)
}
