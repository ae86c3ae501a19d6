package main

import (
	"fmt"
	"os"
	"strings"

	"klog"
	"ktrap"
	"proc"
	"ustr"
	"vm"
)

// runActions returns the init thread's UserEntry: it drives the action
// list given on the command line directly against k.Fs and proc, the
// way Pintos's run_actions calls filesys_open/process_execute straight
// from init.c rather than through the syscall trap -- init is kernel
// code, not a user program, so there is no user address space for these
// actions' arguments to live in.
func runActions(k *ktrap.Kernel, actions []action) func(t *proc.Thread_t) {
	return func(t *proc.Thread_t) {
		for _, a := range actions {
			switch a.name {
			case "run":
				doRun(k, t, a.args[0])
			case "ls":
				doLs(k, t)
			case "cat":
				doCat(k, t, a.args[0])
			case "rm":
				doRm(k, t, a.args[0])
			case "extract", "append":
				klog.Warnf("kernel: action %q unsupported: no tar archive format in this image", a.name)
			}
		}
	}
}

func doRun(k *ktrap.Kernel, t *proc.Thread_t, cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}
	child, err := k.Exec(t, fields[0], fields)
	if err != 0 {
		fmt.Printf("exec %q failed: %s\n", fields[0], err)
		return
	}
	status, werr := proc.Wait(t, child.Id)
	if werr != 0 {
		fmt.Printf("wait %q failed: %s\n", fields[0], werr)
		return
	}
	fmt.Printf("%s: exit(%d)\n", fields[0], status)
}

func doLs(k *ktrap.Kernel, t *proc.Thread_t) {
	fh, err := k.Fs.Open(t.Cwd.Path, 0)
	if err != 0 {
		fmt.Printf("ls: %s\n", err)
		return
	}
	defer fh.Close()
	for {
		name, rerr := fh.Readdir()
		if rerr != 0 {
			fmt.Printf("ls: %s\n", rerr)
			return
		}
		if name == nil {
			return
		}
		fmt.Println(string(name))
	}
}

func doCat(k *ktrap.Kernel, t *proc.Thread_t, path string) {
	full := t.Cwd.Canonicalpath(ustr.Ustr(path))
	fh, err := k.Fs.Open(full, 0)
	if err != 0 {
		fmt.Printf("cat: %s: %s\n", path, err)
		return
	}
	defer fh.Close()
	buf := make([]byte, 512)
	for {
		ub := vm.NewFakeubuf(buf)
		n, rerr := fh.Read(ub)
		if rerr != 0 {
			fmt.Printf("cat: %s: %s\n", path, rerr)
			return
		}
		if n == 0 {
			return
		}
		os.Stdout.Write(buf[:n])
	}
}

func doRm(k *ktrap.Kernel, t *proc.Thread_t, path string) {
	full := t.Cwd.Canonicalpath(ustr.Ustr(path))
	if err := k.Fs.Remove(full); err != 0 {
		fmt.Printf("rm: %s: %s\n", path, err)
		return
	}
	fmt.Printf("rm: removed %s\n", path)
}
