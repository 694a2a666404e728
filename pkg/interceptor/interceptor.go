// Package interceptor is the syscall interceptor state machine: it
// drives a tracee through paired syscall-entry and syscall-exit stops,
// classifies each call, and either passes it through, emulates it with
// deterministic keystream bytes, updates the monitored descriptor
// table, forwards the tracee's exit, or injects a fake getpid() return.
package interceptor

import (
	"syscall"

	"github.com/keyed/keyed/pkg/errs"
	"github.com/keyed/keyed/pkg/keystream"
	"github.com/keyed/keyed/pkg/log"
	"github.com/keyed/keyed/pkg/session"
	"github.com/keyed/keyed/pkg/tracer"
)

// Interceptor drives a single tracee through its stop-pairs. There is
// no concurrent access to tracee state: entry classification, any
// register mutation, scratch allocation, resumption, exit-stop wait,
// memory write, and return-register patch happen strictly in that
// order within one stop-pair before the next entry is processed.
type Interceptor struct {
	tracee  *tracer.Tracee
	session *session.Session
}

// New builds an Interceptor over an already-spawned tracee and its
// session.
func New(tracee *tracer.Tracee, sess *session.Session) *Interceptor {
	return &Interceptor{tracee: tracee, session: sess}
}

// Run drives the entry/exit stop-pair loop until the tracee issues
// exit/exit_group (at which point it never returns — the process exits
// with the tracee's code) or a fatal error occurs.
func (in *Interceptor) Run() error {
	for {
		kind, err := in.tracee.Advance()
		if err != nil {
			return err
		}
		if kind == tracer.StopExited {
			return in.forwardExit()
		}

		regs, err := in.tracee.GetRegisters()
		if err != nil {
			return err
		}

		f, err := in.classifyEntry(regs)
		if err != nil {
			return err
		}

		if f.class == classTerminate {
			// exit/exit_group never reaches a syscall-exit stop; the
			// kernel just tears the process down. Terminate now with
			// the code the tracee passed in Rdi.
			code := int(int64(regs.Rdi))
			log.Debug("tracee %d requested exit(%d)", in.tracee.Pid, code)
			in.session.Close()
			tracer.TerminateWith(code)
			return nil // unreachable
		}

		var randomBytes []byte
		if f.class == classEmulateRandom {
			if err := in.tracee.NeutraliseSyscall(regs); err != nil {
				return err
			}
			// Scratch allocation and the keystream fill happen here,
			// at entry time, ahead of tracee resumption, not after
			// the exit-stop wait.
			buf, err := in.session.Scratch(int(f.len))
			if err != nil {
				return err
			}
			keystream.Fill(in.session.Key(), buf)
			randomBytes = buf
		}

		kind, err = in.tracee.Advance()
		if err != nil {
			return err
		}
		if kind == tracer.StopExited {
			return in.forwardExit()
		}

		exitRegs, err := in.tracee.GetRegisters()
		if err != nil {
			return err
		}

		if err := in.applyExit(f, exitRegs, randomBytes); err != nil {
			return err
		}
	}
}

// applyExit performs the post-return mutation for a classified frame.
// randomBytes is the keystream already prepared at entry time for
// classEmulateRandom; nil for every other class.
func (in *Interceptor) applyExit(f *frame, regs *syscall.PtraceRegs, randomBytes []byte) error {
	switch f.class {
	case classCaptureFD:
		if f.pathMatched && isSuccess(regs.Rax) {
			if err := in.session.Table.Add(int(regs.Rax)); err != nil {
				return err
			}
		}

	case classClose:
		// Mirrors kernel semantics: the fd is gone either way,
		// regardless of close()'s return value.
		in.session.Table.Remove(f.fd)

	case classEmulateRandom:
		if err := in.tracee.WriteBytes(f.buf, randomBytes); err != nil {
			return err
		}
		if err := in.tracee.PokeReturn(regs, f.len); err != nil {
			return err
		}

	case classFakePID:
		if err := in.tracee.PokeReturn(regs, *in.session.FakePID); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interceptor) forwardExit() error {
	in.session.Close()
	if in.tracee.Killed {
		return errs.New(errs.TraceError, "tracee %d was killed before it could exit", in.tracee.Pid)
	}
	tracer.TerminateWith(in.tracee.ExitCode)
	return nil // unreachable
}

// isSuccess reports whether a raw return register value represents a
// non-negative (successful) syscall result, per the "ulong(-4095)"
// errno-range convention the x86-64 syscall ABI uses.
func isSuccess(rax uint64) bool {
	const maxErrno = ^uint64(0) - 4095 + 1 // ulong(-4095)
	return rax < maxErrno
}
