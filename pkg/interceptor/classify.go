package interceptor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// class is the closed tagged classification of a syscall stop. No
// dynamic dispatch: a syscall is exactly one of these at any stop.
type class int

const (
	classIgnore class = iota
	classEmulateRandom
	classCaptureFD
	classClose
	classFakePID
	classTerminate
)

// The two sentinel device paths, byte-exact, no trailing slash. Only
// the plain open(2) syscall is recognised — openat, O_CLOEXEC-only
// variants, pread, readv and the vectorised reads are intentionally
// not handled; see DESIGN.md's Open Questions resolution.
const (
	pathRandom  = "/dev/random"
	pathURandom = "/dev/urandom"
	// pathReadLen holds "/dev/urandom" (12 bytes) plus its
	// terminating NUL.
	pathReadLen = 13
)

// frame is the transient per-stop record of a syscall in flight. It
// lives across exactly one entry/exit stop pair.
type frame struct {
	nr    uint64
	class class

	// classEmulateRandom
	buf uintptr
	len uint64

	// classCaptureFD
	pathMatched bool

	// classClose / classCaptureFD exit bookkeeping
	fd int
}

// matchesSentinelPath reports whether the NUL-terminated prefix of buf
// is exactly one of the two sentinel device paths. buf is the raw,
// possibly-short read from tracee memory; the NUL must land exactly at
// the literal's length, which already excludes a lookalike like
// "/dev/urandomX" without any extra bookkeeping.
func matchesSentinelPath(buf []byte) bool {
	if len(buf) > len(pathRandom) && buf[len(pathRandom)] == 0 && string(buf[:len(pathRandom)]) == pathRandom {
		return true
	}
	if len(buf) > len(pathURandom) && buf[len(pathURandom)] == 0 && string(buf[:len(pathURandom)]) == pathURandom {
		return true
	}
	return false
}

// classifyEntry reads the entry-stop registers and returns the
// syscall's classification. The canonical syscall number comes from
// Orig_rax, never Rax (which the kernel overwrites with the return
// value on exit).
func (in *Interceptor) classifyEntry(regs *syscall.PtraceRegs) (*frame, error) {
	nr := regs.Orig_rax
	f := &frame{nr: nr, class: classIgnore}

	switch nr {
	case uint64(syscall.SYS_OPEN):
		pathBuf, err := in.tracee.ReadBytes(uintptr(regs.Rdi), pathReadLen)
		if err != nil {
			return nil, err
		}
		if matchesSentinelPath(pathBuf) {
			f.class = classCaptureFD
			f.pathMatched = true
		}

	case uint64(syscall.SYS_CLOSE):
		fd := int(regs.Rdi)
		if in.session.Table.Contains(fd) {
			f.class = classClose
			f.fd = fd
		}

	case uint64(syscall.SYS_READ):
		fd := int(regs.Rdi)
		length := regs.Rdx
		if in.session.Table.Contains(fd) && length > 0 {
			f.class = classEmulateRandom
			f.buf = uintptr(regs.Rsi)
			f.len = length
		}

	case uint64(unix.SYS_GETRANDOM):
		length := regs.Rsi
		if length > 0 {
			f.class = classEmulateRandom
			f.buf = uintptr(regs.Rdi)
			f.len = length
		}

	case uint64(syscall.SYS_GETPID):
		if in.session.FakePID != nil {
			f.class = classFakePID
		}

	case uint64(syscall.SYS_EXIT), uint64(syscall.SYS_EXIT_GROUP):
		f.class = classTerminate
	}

	return f, nil
}
