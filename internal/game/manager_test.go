package game

import (
	"sync"
	"testing"
)

func TestNewRooms(t *testing.T) {
	r := newRooms()
	if r.live == nil || r.sockets == nil {
		t.Fatal("maps should be initialized")
	}
	if _, ok := r.get("nope"); ok {
		t.Fatal("unknown game should not be live")
	}
}

func TestRoomsPutDrop(t *testing.T) {
	r := newRooms()
	s := &Session{ID: "g1"}
	r.put(s)
	got, ok := r.get("g1")
	if !ok || got != s {
		t.Fatal("expected live session to be returned")
	}
	r.bindSocket("g1", "ana", "sid-1")
	r.drop("g1")
	if _, ok := r.get("g1"); ok {
		t.Fatal("session should be gone after drop")
	}
	if _, ok := r.socketOf("g1", "ana"); ok {
		t.Fatal("sockets should be gone after drop")
	}
}

func TestRoomsSockets(t *testing.T) {
	r := newRooms()
	r.bindSocket("g1", "ana", "sid-1")
	r.bindSocket("g2", "ana", "sid-1")
	r.bindSocket("g1", "ben", "sid-2")

	sid, ok := r.socketOf("g1", "ben")
	if !ok || sid != "sid-2" {
		t.Fatalf("expected sid-2, got %q", sid)
	}

	r.unbindSocket("sid-1")
	if _, ok := r.socketOf("g1", "ana"); ok {
		t.Fatal("ana should be unbound in g1")
	}
	if _, ok := r.socketOf("g2", "ana"); ok {
		t.Fatal("ana should be unbound in g2")
	}
	if _, ok := r.socketOf("g1", "ben"); !ok {
		t.Fatal("ben should still be bound")
	}
}

func TestRoomsLockSerializes(t *testing.T) {
	r := newRooms()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := r.lock("g1")
			defer unlock()
			c := counter
			c++
			counter = c
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50, got %d", counter)
	}
}

func TestRoomsLockReleasesEntries(t *testing.T) {
	r := newRooms()
	unlock := r.lock("g1")
	if n := r.locks.len(); n != 1 {
		t.Fatalf("expected 1 held lock, got %d", n)
	}

	acquired := make(chan struct{})
	go func() {
		release := r.lock("g1")
		close(acquired)
		release()
	}()
	unlock()
	<-acquired

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.lock("g2")()
		}()
	}
	wg.Wait()
	r.lock("g1")()

	if n := r.locks.len(); n != 0 {
		t.Fatalf("expected no locks left, got %d", n)
	}
}
