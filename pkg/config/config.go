// Package config is the thin CLI wrapper: it owns flag parsing and is
// the one place allowed to decide "usage error, print to stderr, exit
// non-zero" before the core ever starts.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/keyed/keyed/pkg/env"
	"github.com/keyed/keyed/pkg/errs"
)

// defaultFakePID is the -p value used when no optional argument is
// given.
const defaultFakePID = 2

// maxPassphraseFileBytes bounds -k FILE reads.
const maxPassphraseFileBytes = 1024

// Config is the parsed CLI surface, passed explicitly down the call
// chain rather than read from globals.
type Config struct {
	PassphraseFile string // empty means "prompt interactively"
	ConfirmCount   int
	FakePID        *uint64
	Verbose        bool
	Argv           []string // child command and its arguments
}

// Parse parses os.Args[1:] into a Config. On -h it prints usage to
// stdout and exits 0 (not an error).
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("keyed", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printUsage(os.Stderr) }

	help := fs.BoolP("help", "h", false, "print usage and exit")
	keyFile := fs.StringP("keyfile", "k", "", "read passphrase from FILE")
	confirmCount := fs.IntP("confirm", "n", 1, "number of confirmation re-entries when prompting interactively")
	fakePID := fs.StringP("pid", "p", "", "enable getpid() emulation, optionally with a fake PID")
	fs.Lookup("pid").NoOptDefVal = fmt.Sprintf("%d", defaultFakePID)
	verbose := fs.BoolP("verbose", "v", false, "enable verbose diagnostic output")

	// pflag binds an optional value only in the -p=N form and reads -pN
	// as -p followed by a shorthand N, so -pN is rewritten first.
	args = append([]string(nil), args...)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" || len(a) < 2 || a[0] != '-' {
			break
		}
		if a == "-k" || a == "-n" || a == "--keyfile" || a == "--confirm" {
			i++ // the flag's value is the next argument
		} else if len(a) > 2 && a[:2] == "-p" && a[2] >= '0' && a[2] <= '9' {
			args[i] = "-p=" + a[2:]
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, errs.Wrap(errs.UsageError, err, "parsing arguments")
	}

	if *help {
		printUsage(os.Stdout)
		os.Exit(env.ExitOk)
	}

	cfg := &Config{
		PassphraseFile: *keyFile,
		ConfirmCount:   *confirmCount,
		Verbose:        *verbose,
		Argv:           fs.Args(),
	}

	if fs.Changed("pid") {
		var pid uint64
		if _, err := fmt.Sscanf(*fakePID, "%d", &pid); err != nil {
			pid = defaultFakePID
		}
		cfg.FakePID = &pid
	}

	if cfg.ConfirmCount < 0 {
		return nil, errs.New(errs.UsageError, "-n must not be negative")
	}
	if len(cfg.Argv) == 0 {
		return nil, errs.New(errs.UsageError, "missing command to run")
	}

	return cfg, nil
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, "Usage: keyed [-h] [-k FILE] [-n N] [-p[PID]] [-v] COMMAND [ARGS...]")
	fmt.Fprintln(w, "run COMMAND under a deterministic, passphrase-keyed randomness source")
}

// ReadPassphraseFile reads a passphrase from FILE, truncating at the
// first newline. Errors if the file exceeds maxPassphraseFileBytes
// without ever finding one.
func ReadPassphraseFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "opening passphrase file %q", path)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, maxPassphraseFileBytes)
	line, err := reader.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// A full buffer is still within the bound if the file ends there.
		if _, perr := reader.Peek(1); perr != io.EOF {
			return nil, errs.New(errs.IoError, "passphrase file %q exceeds %d bytes without a newline", path, maxPassphraseFileBytes)
		}
		err = io.EOF
	}
	if err != nil && len(line) == 0 {
		return nil, errs.Wrap(errs.IoError, err, "reading passphrase file %q", path)
	}
	// ReadSlice includes the delimiter; strip it (err == io.EOF means
	// no trailing newline, which is fine).
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out, nil
}
