// Package keystream is the sole source of determinism in keyed: it
// turns a passphrase into a 32-byte key (the KDF Adapter) and turns
// that key into an arbitrary-length, reproducible byte sequence (the
// Keystream) that the interceptor writes in place of real entropy.
package keystream

import (
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20"

	"github.com/keyed/keyed/pkg/errs"
)

// KeySize is the width of the derived key, fixed by spec.
const KeySize = 32

// nonceSize is chacha20's required nonce width. Kept all-zero per the
// keystream offset policy: fixed nonce, restart at offset zero.
const nonceSize = chacha20.NonceSize

// argon2 parameters. Deliberately moderate (not maxed out) per "ops
// and memory parameters": this runs once per invocation, not in a
// hot path, but the tool still has to start promptly against a
// traced child that's already stopped waiting on the first syscall.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// zeroSalt is the fixed all-zero salt: reproducibility across runs
// requires it. Two users with the same passphrase get identical
// keystreams — a deliberate tradeoff, not a bug.
var zeroSalt = make([]byte, 16)

// Derive applies Argon2id with a fixed zero salt to the passphrase,
// producing a 32-byte key. Pure function of passphrase.
func Derive(passphrase []byte) (key [KeySize]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.KdfError, "argon2 key derivation failed: %v", r)
		}
	}()
	derived := argon2.IDKey(passphrase, zeroSalt, argonTime, argonMemory, argonThreads, KeySize)
	copy(key[:], derived)
	return key, nil
}

// Zero overwrites a derived key in place. Best-effort: Go offers no
// guarantee that no other copy of the bytes exists in memory, but this
// at least destroys the canonical one promptly on shutdown.
func Zero(key *[KeySize]byte) {
	for i := range key {
		key[i] = 0
	}
}

// Fill writes len(out) bytes of deterministic ChaCha20 keystream,
// keyed by key, into out. A fresh cipher is constructed on every call
// with the fixed all-zero nonce and never reused across calls: this is
// what makes "each emulated call restarts the keystream at offset
// zero" a structural guarantee instead of a counter some caller has to
// remember to reset.
func Fill(key [KeySize]byte, out []byte) {
	if len(out) == 0 {
		return
	}
	var nonce [nonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Only possible cause is a key/nonce of the wrong length,
		// both of which are fixed constants here.
		panic(err)
	}
	for i := range out {
		out[i] = 0
	}
	cipher.XORKeyStream(out, out)
}
