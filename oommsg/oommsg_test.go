package oommsg

import "testing"

func drain() {
	for len(Ch) > 0 {
		<-Ch
	}
}

func TestNotifyDeliversIntoEmptyBuffer(t *testing.T) {
	drain()
	defer drain()
	if !Notify(Msg{Module: "test", Need: 42}) {
		t.Fatal("expected the buffered channel to accept a notification")
	}
	m := <-Ch
	if m.Need != 42 || m.Module != "test" {
		t.Fatalf("got %+v, want Need=42 Module=test", m)
	}
}

func TestNotifyNeverBlocksWhenFull(t *testing.T) {
	drain()
	defer drain()
	Ch <- Msg{Module: "first"}
	if Notify(Msg{Module: "second"}) {
		t.Fatal("expected Notify to report no delivery when the buffer is already full")
	}
}
