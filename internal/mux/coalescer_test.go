package mux

import (
	"sync"
	"testing"
	"time"
)

func TestCoalescerFlushesOnQuietWindow(t *testing.T) {
	var mu sync.Mutex
	var batches [][]byte
	c := NewNativeOutputCoalescer(CoalescerConfig{Window: 10 * time.Millisecond, MaxDelay: time.Second, MaxBytes: 1 << 20}, func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, b)
	})

	c.Write([]byte("hello "))
	c.Write([]byte("world"))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 || string(batches[0]) != "hello world" {
		t.Fatalf("expected one coalesced batch \"hello world\", got %v", batches)
	}
}

func TestCoalescerFlushesOnByteBudget(t *testing.T) {
	var mu sync.Mutex
	var batches [][]byte
	c := NewNativeOutputCoalescer(CoalescerConfig{Window: time.Second, MaxDelay: time.Second, MaxBytes: 4}, func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, append([]byte(nil), b...))
	})

	c.Write([]byte("ab"))
	c.Write([]byte("cd"))
	c.Write([]byte("ef")) // exceeds budget, forces a flush of "abcd" first

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 || string(batches[0]) != "abcd" {
		t.Fatalf("expected byte-budget flush of \"abcd\", got %v", batches)
	}
}
