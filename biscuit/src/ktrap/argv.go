package ktrap

import (
	"mem"

	"defs"
	"vm"
)

const wordSize = 4

// layoutArgv writes argv onto a freshly loaded address space's stack,
// per spec.md §4.5's exec() layout: "string bodies first, then a
// word-aligned argv[] with a NUL terminator, then argv, argc, and a
// dummy return address." Each write goes through K2user/Userwriten, so
// the stack VMA grows downward through the ordinary write-fault path
// (vm/fault.go) exactly as it would for any other user store -- there is
// no separate bootstrap path for the initial frame.
func layoutArgv(as *vm.Vm_t, argv []string) (uintptr, defs.Err_t) {
	sp := int(vm.StackTop) + mem.PGSIZE

	ptrs := make([]int, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		b := append([]byte(argv[i]), 0)
		sp -= len(b)
		if err := as.K2user(b, sp); err != 0 {
			return 0, err
		}
		ptrs[i] = sp
	}

	sp &^= wordSize - 1 // align argv[] itself on a word boundary

	sp -= wordSize // argv[argc] NUL terminator
	if err := as.Userwriten(sp, wordSize, 0); err != 0 {
		return 0, err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		sp -= wordSize
		if err := as.Userwriten(sp, wordSize, ptrs[i]); err != 0 {
			return 0, err
		}
	}
	argvAddr := sp

	sp -= wordSize // argv
	if err := as.Userwriten(sp, wordSize, argvAddr); err != 0 {
		return 0, err
	}
	sp -= wordSize // argc
	if err := as.Userwriten(sp, wordSize, len(argv)); err != 0 {
		return 0, err
	}
	sp -= wordSize // dummy return address
	if err := as.Userwriten(sp, wordSize, 0); err != 0 {
		return 0, err
	}

	return uintptr(sp), 0
}
