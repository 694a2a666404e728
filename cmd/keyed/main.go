// Command keyed launches a child process and deterministically
// replaces the kernel-provided randomness it observes with a keystream
// derived from a user-supplied passphrase.
package main

import (
	"os"

	"github.com/keyed/keyed/pkg/config"
	"github.com/keyed/keyed/pkg/env"
	"github.com/keyed/keyed/pkg/errs"
	"github.com/keyed/keyed/pkg/interceptor"
	"github.com/keyed/keyed/pkg/keystream"
	"github.com/keyed/keyed/pkg/log"
	"github.com/keyed/keyed/pkg/prompt"
	"github.com/keyed/keyed/pkg/session"
	"github.com/keyed/keyed/pkg/tracer"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		die(err)
	}

	log.SetVerbose(cfg.Verbose)

	passphrase, err := acquirePassphrase(cfg)
	if err != nil {
		die(err)
	}

	key, err := keystream.Derive(passphrase)
	for i := range passphrase {
		passphrase[i] = 0
	}
	if err != nil {
		die(err)
	}

	tracee, err := tracer.Spawn(cfg.Argv)
	if err != nil {
		die(err)
	}

	sess := session.New(key, session.DefaultTableCapacity, cfg.Verbose, cfg.FakePID, tracee.Pid)
	keystream.Zero(&key)
	defer sess.Close()

	log.Debug("supervising pid %d: %v", tracee.Pid, cfg.Argv)

	in := interceptor.New(tracee, sess)
	if err := in.Run(); err != nil {
		sess.Close()
		die(err)
	}
}

// acquirePassphrase gives -k FILE priority over the interactive
// terminal prompt.
func acquirePassphrase(cfg *config.Config) ([]byte, error) {
	if cfg.PassphraseFile != "" {
		return config.ReadPassphraseFile(cfg.PassphraseFile)
	}
	return prompt.ReadPassphrase(cfg.ConfirmCount)
}

// die reports a fatal error: a single "keyed: "-prefixed diagnostic
// line on stderr and a non-zero exit.
func die(err error) {
	if e, ok := err.(*errs.Error); ok {
		log.DieWithCode(exitCodeFor(e.Kind), "%s", e)
	}
	log.Die("%s", err)
}

func exitCodeFor(kind errs.Kind) int {
	if kind == errs.UsageError {
		return env.ExitArgs
	}
	return env.ExitErr
}
