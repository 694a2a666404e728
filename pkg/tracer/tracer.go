// Package tracer is the tracee controller and memory proxy: it owns
// the lifecycle of the traced child (fork, PTRACE_TRACEME, exec, wait,
// exit propagation) and the primitives for crossing the process
// boundary (register snapshots, remote memory reads/writes).
package tracer

import (
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/keyed/keyed/pkg/errs"
	"github.com/keyed/keyed/pkg/log"
)

// syscallStopSignal is SIGTRAP with the high bit PTRACE_O_TRACESYSGOOD
// sets on syscall-stops, distinguishing them from other SIGTRAP stops.
const syscallStopSignal = syscall.SIGTRAP | 0x80

// child tracing state.
const (
	stateRunning = iota
	stateSignalDelivery
	stateSyscallEnter
	stateSyscallExit
	stateExited
	stateKilled
)

// StopKind tells the interceptor what kind of stop Advance returned.
type StopKind int

const (
	// StopSyscallEnter is a syscall-entry stop: registers reflect the
	// about-to-be-dispatched call.
	StopSyscallEnter StopKind = iota
	// StopSyscallExit is a syscall-exit stop: registers reflect the
	// kernel's result.
	StopSyscallExit
	// StopExited means the tracee has terminated; ExitCode is valid.
	StopExited
)

// Tracee is a fork+exec'd, ptrace-traced child process.
type Tracee struct {
	cmd   *exec.Cmd
	Pid   int
	state int

	// ExitCode is valid once Advance returns StopExited.
	ExitCode int
	// Killed is true if the tracee died to a signal rather than exit().
	Killed bool
}

// Spawn forks, has the child opt into PTRACE_TRACEME (via
// SysProcAttr.Ptrace, the Go runtime's binding for it), and execs argv
// with the supervisor's own stdio inherited. See SpawnIO for a variant
// with redirectable streams, used by tests.
func Spawn(argv []string) (*Tracee, error) {
	return SpawnIO(argv, os.Stdin, os.Stdout, os.Stderr)
}

// SpawnIO is Spawn with explicit stdio streams. The exec produces the
// first stop (the SIGTRAP a traced exec raises), which is consumed here
// as the synchronisation
// point; PTRACE_O_EXITKILL is set immediately after so the kernel
// terminates the tracee if this process dies for any reason.
func SpawnIO(argv []string, stdin io.Reader, stdout, stderr io.Writer) (*Tracee, error) {
	if len(argv) == 0 {
		return nil, errs.New(errs.SpawnError, "empty command")
	}

	runtime.LockOSThread()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.SpawnError, err, "fork/exec %q", argv[0])
	}

	t := &Tracee{cmd: cmd, Pid: cmd.Process.Pid, state: stateRunning}

	if err := t.waitChild(); err != nil {
		return nil, err
	}
	if t.state != stateSignalDelivery {
		return nil, errs.New(errs.TraceError, "expected initial stop, got state %d", t.state)
	}

	opts := unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_EXITKILL
	if err := syscall.PtraceSetOptions(t.Pid, opts); err != nil {
		return nil, errs.Wrap(errs.TraceError, err, "ptrace set options")
	}

	return t, nil
}

// Advance resumes the tracee until its next syscall-entry or
// syscall-exit stop, then blocks until that stop is observed.
func (t *Tracee) Advance() (StopKind, error) {
	for {
		if err := syscall.PtraceSyscall(t.Pid, 0); err != nil {
			return 0, errs.Wrap(errs.TraceError, err, "ptrace syscall resume")
		}
		if err := t.waitChild(); err != nil {
			return 0, err
		}
		switch t.state {
		case stateSyscallEnter:
			return StopSyscallEnter, nil
		case stateSyscallExit:
			return StopSyscallExit, nil
		case stateExited, stateKilled:
			return StopExited, nil
		case stateSignalDelivery:
			// A non-syscall signal arrived; resuming with signal 0 on
			// the next PtraceSyscall discards it and we keep going.
			continue
		}
	}
}

// waitChild blocks for the tracee's next wait status and classifies
// it.
func (t *Tracee) waitChild() error {
	var wstatus syscall.WaitStatus

	wpid, err := syscall.Wait4(t.Pid, &wstatus, unix.WALL, nil)
	if err != nil {
		return errs.Wrap(errs.TraceError, err, "wait4 on %d", t.Pid)
	}
	if wpid != t.Pid {
		log.Error("expected wait4 to return %d, got %d", t.Pid, wpid)
	}

	switch {
	case wstatus.Exited():
		t.state = stateExited
		t.ExitCode = wstatus.ExitStatus()
		log.Debug("tracee %d exited with code %d", t.Pid, t.ExitCode)
	case wstatus.Signaled():
		t.state = stateKilled
		t.Killed = true
		log.Debug("tracee %d killed by signal %v", t.Pid, wstatus.Signal())
	case wstatus.Stopped():
		sig := wstatus.StopSignal()
		if sig == syscallStopSignal {
			if t.state != stateSyscallEnter {
				t.state = stateSyscallEnter
			} else {
				t.state = stateSyscallExit
			}
		} else {
			t.state = stateSignalDelivery
			log.Debug("tracee %d stopped on signal %v", t.Pid, sig)
		}
	default:
		return errs.New(errs.TraceError, "unrecognised wait status for %d: %v", t.Pid, wstatus)
	}
	return nil
}

// GetRegisters reads the tracee's saved register block.
func (t *Tracee) GetRegisters() (*syscall.PtraceRegs, error) {
	regs := &syscall.PtraceRegs{}
	if err := syscall.PtraceGetRegs(t.Pid, regs); err != nil {
		return nil, errs.Wrap(errs.TraceError, err, "ptrace getregs on %d", t.Pid)
	}
	return regs, nil
}

// SetRegisters overwrites the tracee's saved register block in full.
func (t *Tracee) SetRegisters(regs *syscall.PtraceRegs) error {
	if err := syscall.PtraceSetRegs(t.Pid, regs); err != nil {
		return errs.Wrap(errs.TraceError, err, "ptrace setregs on %d", t.Pid)
	}
	return nil
}

// NeutraliseSyscall rewrites the original-syscall register to an
// invalid number so the kernel's dispatch fails cheaply, while still
// delivering the matching syscall-exit stop.
func (t *Tracee) NeutraliseSyscall(regs *syscall.PtraceRegs) error {
	regs.Orig_rax = ^uint64(0) // -1: no such syscall
	return t.SetRegisters(regs)
}

// PokeReturn overwrites only the return-value register of a snapshot
// just read from the tracee, then writes the whole block back. Never a
// partial poke: the snapshot is always freshly read in the same stop.
func (t *Tracee) PokeReturn(regs *syscall.PtraceRegs, value uint64) error {
	regs.Rax = value
	return t.SetRegisters(regs)
}

// ReadBytes copies up to n bytes from the tracee's address space
// starting at addr, stopping early only at an unreadable page.
func (t *Tracee) ReadBytes(addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := syscall.PtracePeekData(t.Pid, addr, buf)
	if err != nil {
		return nil, errs.Wrap(errs.TraceError, err, "ptrace peekdata on %d", t.Pid)
	}
	return buf[:got], nil
}

// WriteBytes copies data into the tracee's address space at addr, one
// word at a time, and reports an error unless every byte was written.
// A failed call is not rolled back: the bytes before the failing word
// stay written.
func (t *Tracee) WriteBytes(addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := syscall.PtracePokeData(t.Pid, addr, data)
	if err != nil {
		return errs.Wrap(errs.TraceError, err, "ptrace pokedata on %d", t.Pid)
	}
	if n != len(data) {
		return errs.New(errs.TraceError, "short write to %d: wrote %d of %d bytes", t.Pid, n, len(data))
	}
	return nil
}

// TerminateWith exits the supervisor process with code, used when the
// tracee itself requested this exit code via exit/exit_group.
func TerminateWith(code int) {
	os.Exit(code)
}
