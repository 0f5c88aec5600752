package endpoint_test

import (
	"errors"
	"testing"
	"time"

	"github.com/thushan/conduit/internal/adapter/endpoint"
	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
	"github.com/thushan/conduit/internal/runtime"
)

func waitForState(t *testing.T, e *endpoint.Endpoint, want domain.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := e.State(); got == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, e.State())
}

func TestOpen_ImmediateLLOpenReachesOpen(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenImmediate}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	done := make(chan error, 1)
	if err := e.Open(func(err error) { done <- err }); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("openDone err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for openDone")
	}

	if got := e.State(); got != domain.Open {
		t.Fatalf("state = %v, want Open", got)
	}
}

func TestOpen_AsyncLLOpenReachesOpen(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenInProgress}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	done := make(chan error, 1)
	if err := e.Open(func(err error) { done <- err }); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if got := e.State(); got != domain.OpeningLL {
		t.Fatalf("state = %v, want OpeningLL", got)
	}

	ll.fireOpenDone(nil)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("openDone err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for openDone")
	}
	if got := e.State(); got != domain.Open {
		t.Fatalf("state = %v, want Open", got)
	}
}

func TestOpen_LLOpenErrorClosesAndCleansFilter(t *testing.T) {
	wantErr := errors.New("boom")
	ll := &fakeLL{openStatus: ports.LLOpenErr, openErr: wantErr}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	err := e.Open(func(error) {})

	var epErr *domain.Error
	if !errors.As(err, &epErr) || epErr.Kind != domain.KindCommunication {
		t.Fatalf("Open err = %v, want *domain.Error{Kind: KindCommunication}", err)
	}
	if !flt.wasCleanedUp() {
		t.Fatal("expected filter Cleanup on synchronous LL open failure")
	}
	if got := e.State(); got != domain.Closed {
		t.Fatalf("state = %v, want Closed", got)
	}
}

func TestOpen_BusyWhenNotClosed(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenInProgress}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	if err := e.Open(func(error) {}); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	err := e.Open(func(error) {})
	var epErr *domain.Error
	if !errors.As(err, &epErr) || epErr.Kind != domain.KindBusy {
		t.Fatalf("second Open err = %v, want *domain.Error{Kind: KindBusy}", err)
	}
}

func TestWrite_BadEndpointWhenNotOpen(t *testing.T) {
	ll := &fakeLL{}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	_, err := e.Write([]byte("hi"))
	var epErr *domain.Error
	if !errors.As(err, &epErr) || epErr.Kind != domain.KindBadEndpoint {
		t.Fatalf("Write err = %v, want *domain.Error{Kind: KindBadEndpoint}", err)
	}
}

func TestWriteThenClose(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenImmediate, closeStatus: ports.LLCloseImmediate}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	opened := make(chan error, 1)
	if err := e.Open(func(err error) { opened <- err }); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := <-opened; err != nil {
		t.Fatalf("openDone err = %v", err)
	}

	n, err := e.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}

	closed := make(chan struct{})
	if err := e.Close(func() { close(closed) }); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closeDone")
	}

	waitForState(t, e, domain.Closed)
	if len(ll.writes) != 1 || string(ll.writes[0]) != "hello" {
		t.Fatalf("ll.writes = %v, want one write of \"hello\"", ll.writes)
	}
}

func TestClose_DuringOpeningLLReleasesOpenRef(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenInProgress, closeStatus: ports.LLCloseImmediate}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	if err := e.Open(func(error) {}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := e.State(); got != domain.OpeningLL {
		t.Fatalf("state = %v, want OpeningLL", got)
	}

	closed := make(chan struct{})
	if err := e.Close(func() { close(closed) }); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closeDone")
	}
	waitForState(t, e, domain.Closed)
}

func TestClose_BusyWhenAlreadyClosed(t *testing.T) {
	ll := &fakeLL{}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	err := e.Close(func() {})
	var epErr *domain.Error
	if !errors.As(err, &epErr) || epErr.Kind != domain.KindBusy {
		t.Fatalf("Close err = %v, want *domain.Error{Kind: KindBusy}", err)
	}
}

func TestFree_DropsToZeroAndCloses(t *testing.T) {
	ll := &fakeLL{openStatus: ports.LLOpenImmediate, closeStatus: ports.LLCloseImmediate}
	flt := &fakeFilter{}
	e := endpoint.New(runtime.NewServices(), ll, flt, ports.Callbacks{})

	opened := make(chan error, 1)
	if err := e.Open(func(err error) { opened <- err }); err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-opened

	e.Ref()
	e.Free()
	if got := e.State(); got != domain.Open {
		t.Fatalf("state = %v, want Open (freeref should still be 1)", got)
	}

	e.Free()
	waitForState(t, e, domain.Closed)
}

func TestNewServer_BornOpeningFilter(t *testing.T) {
	ll := &fakeLL{}
	flt := &fakeFilter{}
	done := make(chan error, 1)

	e := endpoint.NewServer(runtime.NewServices(), ll, flt, func(err error) { done <- err })
	if got := e.State(); got != domain.OpeningFilter {
		t.Fatalf("state = %v, want OpeningFilter", got)
	}
}
