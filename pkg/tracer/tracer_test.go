package tracer

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestNeutraliseSyscallSetsOrigRaxToMinusOne(t *testing.T) {
	regs := &syscall.PtraceRegs{Orig_rax: uint64(unix.SYS_GETRANDOM)}
	// Exercise the register-mutation half of NeutraliseSyscall: pid 0
	// is never a tracee, so the write-back fails, but the snapshot is
	// mutated before it.
	_ = (&Tracee{Pid: 0}).NeutraliseSyscall(regs)
	assert.Equal(t, ^uint64(0), regs.Orig_rax)
}

func TestPokeReturnOverwritesOnlyRax(t *testing.T) {
	regs := &syscall.PtraceRegs{Rax: 0, Rdi: 42, Rsi: 7}
	_ = (&Tracee{Pid: 0}).PokeReturn(regs, 16)
	assert.Equal(t, uint64(16), regs.Rax)
	assert.Equal(t, uint64(42), regs.Rdi)
	assert.Equal(t, uint64(7), regs.Rsi)
}
