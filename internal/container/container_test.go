package container_test

import (
	"bytes"
	"testing"

	"github.com/db47h/zplc/internal/container"
)

func TestRoundTrip(t *testing.T) {
	c := &container.Container{
		Code: []byte{0x40, 0x05, 0x01}, // PUSH8 5; HALT
		Tasks: []container.Task{
			{ID: 0, Type: container.TaskCyclic, Priority: 1, IntervalUs: 10000, EntryPoint: 0, StackSize: 64},
			{ID: 1, Type: container.TaskEvent, Priority: 3, IntervalUs: 0, EntryPoint: 3, StackSize: 128},
		},
	}

	data, err := container.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := container.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Code, c.Code) {
		t.Fatalf("code mismatch: got %v, want %v", got.Code, c.Code)
	}
	if len(got.Tasks) != len(c.Tasks) {
		t.Fatalf("task count mismatch: got %d, want %d", len(got.Tasks), len(c.Tasks))
	}
	for i := range c.Tasks {
		if got.Tasks[i] != c.Tasks[i] {
			t.Fatalf("task %d mismatch: got %+v, want %+v", i, got.Tasks[i], c.Tasks[i])
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := []byte("not a container, just some bytes padded out to be long enough")
	if _, err := container.Decode(bytes.NewReader(data)); err == nil {
		t.Fatal("expected an error decoding a non-container buffer")
	}
}

func TestDecodeRejectsTruncatedCode(t *testing.T) {
	c := &container.Container{Code: []byte{0x01, 0x02, 0x03, 0x04}}
	data, err := container.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	truncated := data[:len(data)-2]
	if _, err := container.Decode(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected an error decoding a truncated container")
	}
}
