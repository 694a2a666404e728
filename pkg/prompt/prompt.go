// Package prompt implements interactive passphrase entry: it opens
// the controlling terminal directly (never stdin), disables echo for
// the read, and requires N confirmation re-entries to match before
// accepting a passphrase.
package prompt

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/keyed/keyed/pkg/errs"
)

// ReadPassphrase opens /dev/tty, prompts once and then confirmCount
// more times, requiring every entry to match byte-for-byte. confirmCount
// of 0 accepts a single entry with no confirmation.
func ReadPassphrase(confirmCount int) ([]byte, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "opening controlling terminal")
	}
	defer tty.Close()

	first, err := readOne(tty, "Passphrase: ")
	if err != nil {
		return nil, err
	}

	for i := 0; i < confirmCount; i++ {
		again, err := readOne(tty, "Confirm passphrase: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(first, again) {
			return nil, errs.New(errs.IoError, "passphrase confirmation did not match")
		}
	}

	return first, nil
}

// readOne prints prompt, disables echo on tty, reads one line
// truncated at the first newline, restores terminal attributes, and
// prints a trailing newline.
func readOne(tty *os.File, label string) ([]byte, error) {
	if _, err := fmt.Fprint(tty, label); err != nil {
		return nil, errs.Wrap(errs.IoError, err, "writing prompt")
	}

	line, err := term.ReadPassword(int(tty.Fd()))
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "reading passphrase from terminal")
	}

	if _, err := fmt.Fprintln(tty); err != nil {
		return nil, errs.Wrap(errs.IoError, err, "writing trailing newline")
	}

	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return line, nil
}
