package vm

import (
	"debug/elf"
	"fmt"

	"bounds"
	"mem"
)

// StackTop is the fixed top-of-stack address every process starts with,
// following Pintos's exec() convention of placing the initial argument
// frame at the top of user space. The stack VMA starts as a single page
// here and grows downward one page at a time on fault (spec.md §4.2).
const StackTop = uintptr(0xc0000000 - mem.PGSIZE)

// StackLimit is the lowest address the stack is ever allowed to grow
// down to, spec.md's "PHYS_BASE − 8 MiB": the page at this address can
// still be grown into, and an access below it is a genuine fault rather
// than further growth.
const StackLimit = uintptr(0xc0000000 - 8*1024*1024)

// LoadElf parses an ELF32 executable from exec and installs its code and
// data segments as lazily-populated VMA regions in a fresh address space,
// plus a guard-bounded stack region. It validates the subset of the ELF
// format spec.md's loader cares about: i386, statically linked, PT_LOAD
// segments only. It returns the new address space and the entry point.
func LoadElf(exec FileBacker) (*Vm_t, uintptr, error) {
	f, err := elf.NewFile(exec)
	if err != nil {
		return nil, 0, fmt.Errorf("vm: not an ELF file: %w", err)
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, 0, fmt.Errorf("vm: only 32-bit executables are supported")
	}
	if f.Machine != elf.EM_386 {
		return nil, 0, fmt.Errorf("vm: wrong machine type %v", f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return nil, 0, fmt.Errorf("vm: not a static executable (type %v)", f.Type)
	}
	for _, p := range f.Progs {
		if p.Type == elf.PT_INTERP || p.Type == elf.PT_DYNAMIC {
			return nil, 0, fmt.Errorf("vm: dynamically linked executables are not supported")
		}
	}

	as := NewVm()
	sawCode, sawData := false, false
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Vaddr == 0 {
			return nil, 0, fmt.Errorf("vm: segment maps page 0")
		}
		begin := uintptr(p.Vaddr) &^ uintptr(mem.PGSIZE-1)
		end := bounds.RoundupPage(uintptr(p.Vaddr+p.Memsz), mem.PGSIZE)
		role := RoleData
		perms := uintptr(PTE_U)
		if p.Flags&elf.PF_W != 0 {
			perms |= PTE_W
			sawData = true
		} else {
			role = RoleCode
			sawCode = true
		}
		as.Vmregion.Add(&Vminfo_t{
			Range:   bounds.Range_t{Begin: begin, End: end},
			Role:    role,
			Perms:   perms,
			File:    exec,
			FileOff: int64(p.Off) - int64(uintptr(p.Vaddr)-begin),
		})
	}
	if !sawCode {
		return nil, 0, fmt.Errorf("vm: executable has no code segment")
	}
	_ = sawData

	as.Vmregion.Add(&Vminfo_t{
		Range: bounds.Range_t{Begin: StackTop, End: StackTop + mem.PGSIZE},
		Role:  RoleStack,
		Perms: PTE_U | PTE_W,
		Floor: StackLimit,
	})

	return as, uintptr(f.Entry), nil
}
