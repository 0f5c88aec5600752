package filter_test

import (
	"testing"
	"time"

	"github.com/thushan/conduit/internal/adapter/filter"
	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// fakeFilterCallbacks is a minimal ports.FilterCallbacks double.
type fakeFilterCallbacks struct {
	outputReadyCalls int
}

func (c *fakeFilterCallbacks) OutputReady()         { c.outputReadyCalls++ }
func (c *fakeFilterCallbacks) StartTimer(time.Duration) {}

var _ ports.FilterCallbacks = (*fakeFilterCallbacks)(nil)

func completeSecretboxHandshake(t *testing.T, a, b *filter.Secretbox) {
	t.Helper()
	for i := 0; i < 2; i++ {
		ra := a.TryConnect()
		rb := b.TryConnect()
		if ra.Outcome == domain.ConnectDone && rb.Outcome == domain.ConnectDone {
			return
		}

		// Ferry whatever each side queued for the LL straight to the
		// other's LLWrite, exactly as the engine's writeDataHandler/
		// readDataHandler would across a real transport.
		aOut := drainULWrite(t, a)
		bOut := drainULWrite(t, b)
		if len(aOut) > 0 {
			if _, err := b.LLWrite(discardHandler, aOut); err != nil {
				t.Fatalf("b.LLWrite: %v", err)
			}
		}
		if len(bOut) > 0 {
			if _, err := a.LLWrite(discardHandler, bOut); err != nil {
				t.Fatalf("a.LLWrite: %v", err)
			}
		}
	}
	t.Fatal("secretbox handshake did not complete in 2 rounds")
}

func discardHandler(buf []byte) (int, error) { return len(buf), nil }

// drainULWrite flushes whatever a filter already queued internally
// (e.g. from TryConnect's OutputReady) by calling ULWrite with no new
// plaintext, the same way llWriteReady calls ULWrite(handler, nil).
func drainULWrite(t *testing.T, f *filter.Secretbox) []byte {
	t.Helper()
	var out []byte
	_, err := f.ULWrite(func(buf []byte) (int, error) {
		out = append(out, buf...)
		return len(buf), nil
	}, nil)
	if err != nil {
		t.Fatalf("ULWrite drain: %v", err)
	}
	return out
}

func newHandshakenPair(t *testing.T) (a, b *filter.Secretbox) {
	t.Helper()
	var key [32]byte
	copy(key[:], "this-is-a-32-byte-test-key-ok!!!")

	a = filter.NewSecretbox(key)
	b = filter.NewSecretbox(key)
	a.SetCallbacks(&fakeFilterCallbacks{})
	b.SetCallbacks(&fakeFilterCallbacks{})
	if err := a.Setup(); err != nil {
		t.Fatalf("a.Setup: %v", err)
	}
	if err := b.Setup(); err != nil {
		t.Fatalf("b.Setup: %v", err)
	}

	completeSecretboxHandshake(t, a, b)
	return a, b
}

func TestSecretbox_HandshakeCompletes(t *testing.T) {
	newHandshakenPair(t)
}

func TestSecretbox_RoundTripEncryptsAndDecrypts(t *testing.T) {
	a, b := newHandshakenPair(t)

	var wire []byte
	if _, err := a.ULWrite(func(buf []byte) (int, error) {
		wire = append(wire, buf...)
		return len(buf), nil
	}, []byte("top secret payload")); err != nil {
		t.Fatalf("ULWrite: %v", err)
	}
	if len(wire) == 0 {
		t.Fatal("expected sealed bytes on the wire")
	}

	var plain []byte
	if _, err := b.LLWrite(func(buf []byte) (int, error) {
		plain = append(plain, buf...)
		return len(buf), nil
	}, wire); err != nil {
		t.Fatalf("LLWrite: %v", err)
	}
	if string(plain) != "top secret payload" {
		t.Fatalf("decoded %q, want %q", plain, "top secret payload")
	}
}

func TestSecretbox_TamperedCiphertextFailsAuth(t *testing.T) {
	a, b := newHandshakenPair(t)

	var wire []byte
	if _, err := a.ULWrite(func(buf []byte) (int, error) {
		wire = append(wire, buf...)
		return len(buf), nil
	}, []byte("hello")); err != nil {
		t.Fatalf("ULWrite: %v", err)
	}
	wire[len(wire)-1] ^= 0xFF

	_, err := b.LLWrite(discardHandler, wire)
	if err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}
