package kernel

import "fmt"

// syscallNames is a static x86-64 syscall number -> name table covering the
// syscalls most relevant to host observability. It is intentionally not
// exhaustive; unknown numbers fall back to "syscall_<nr>" per §4.2.
var syscallNames = map[uint32]string{
	0:   "read",
	1:   "write",
	2:   "open",
	3:   "close",
	4:   "stat",
	5:   "fstat",
	9:   "mmap",
	10:  "mprotect",
	11:  "munmap",
	12:  "brk",
	21:  "access",
	22:  "pipe",
	32:  "dup",
	33:  "dup2",
	39:  "getpid",
	41:  "socket",
	42:  "connect",
	43:  "accept",
	44:  "sendto",
	45:  "recvfrom",
	49:  "bind",
	50:  "listen",
	56:  "clone",
	57:  "fork",
	59:  "execve",
	60:  "exit",
	61:  "wait4",
	62:  "kill",
	63:  "uname",
	79:  "getcwd",
	82:  "rename",
	83:  "mkdir",
	84:  "rmdir",
	87:  "unlink",
	89:  "readlink",
	101: "ptrace",
	102: "getuid",
	231: "exit_group",
	257: "openat",
	293: "pipe2",
	322: "execveat",
}

// SyscallName resolves a syscall number to its mnemonic, falling back to a
// synthetic "syscall_<nr>" name for anything outside the static table.
func SyscallName(nr uint32) string {
	if name, ok := syscallNames[nr]; ok {
		return name
	}
	return fmt.Sprintf("syscall_%d", nr)
}
