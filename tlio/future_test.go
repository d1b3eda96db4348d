// SPDX-License-Identifier: GPL-3.0-or-later

package tlio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureResolveThenWait(t *testing.T) {
	f := NewFuture[int]()
	f.Resolve(42, nil)
	v, err := f.Wait(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("got (%v, %v), want (42, nil)", v, err)
	}
	if !f.Done() {
		t.Fatal("expected Done after Resolve")
	}
}

func TestFutureWaitBlocksUntilResolve(t *testing.T) {
	f := NewFuture[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve("ready", nil)
	}()
	v, err := f.Wait(context.Background())
	if err != nil || v != "ready" {
		t.Fatalf("got (%v, %v), want (ready, nil)", v, err)
	}
}

func TestFutureWaitRespectsContextCancellation(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFutureResolveOnlyFirstWins(t *testing.T) {
	f := NewFuture[int]()
	f.Resolve(1, nil)
	f.Resolve(2, errors.New("ignored"))
	v, err := f.Wait(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("expected first resolution to win, got (%v, %v)", v, err)
	}
}
