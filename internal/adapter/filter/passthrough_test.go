package filter_test

import (
	"testing"

	"github.com/thushan/conduit/internal/adapter/filter"
	"github.com/thushan/conduit/internal/core/domain"
)

func TestPassthrough_RoundTrip(t *testing.T) {
	f := filter.NewPassthrough()

	var got []byte
	n, err := f.ULWrite(func(buf []byte) (int, error) {
		got = append(got, buf...)
		return len(buf), nil
	}, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("ULWrite = (%d, %v), want (5, nil)", n, err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	if r := f.TryConnect(); r.Outcome != domain.ConnectDone {
		t.Fatalf("TryConnect = %v, want Done", r.Outcome)
	}
}
