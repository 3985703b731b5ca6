// Package container encodes and decodes the ZPLC binary container file
// (spec §6 "Container file layout"): a fixed header, a CODE segment holding
// the linker's concatenated bytecode, and a TASK segment holding the task
// table internal/link builds.
//
// The encode/decode shape — binary.Write/Read against io.Writer/Reader with
// explicit little-endian fields and size checks — is grounded on the
// teacher's vm/image.go Image.Save/Load, generalized from "one flat cell
// array" to "header + CODE segment + TASK segment". Encode latches write
// errors with internal/ngi.ErrWriter across its several segment writes,
// the same way the teacher's own internal helper package is meant to be
// used by multi-write callers.
package container

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/ngi"
)

// Magic identifies a ZPLC container file.
var Magic = [4]byte{'Z', 'P', 'L', 'C'}

// Version is the container format version this package reads and writes.
const Version uint16 = 1

// TaskRecordSize is the fixed, padded byte size of one TASK segment entry
// (spec §6: id u16, type u8, priority u8, intervalUs u32, entryPoint u16,
// stackSize u16 = 12 bytes of fields, padded to 16).
const TaskRecordSize = 16

// TaskType is a runtime task's trigger kind (spec §4.7 step 5).
type TaskType byte

const (
	TaskCyclic TaskType = 0
	TaskEvent  TaskType = 1
	TaskInit   TaskType = 2
)

// Task is one TASK segment record.
type Task struct {
	ID         uint16
	Type       TaskType
	Priority   uint8
	IntervalUs uint32
	EntryPoint uint16
	StackSize  uint16
}

// header is the fixed-size file header (spec §6).
type header struct {
	Magic             [4]byte
	Version           uint16
	CodeSize          uint32
	TaskSegmentOffset uint32
	TaskCount         uint16
}

const headerSize = 4 + 2 + 4 + 4 + 2

// Container is a fully-assembled container image, ready to write or just
// decoded from reading.
type Container struct {
	Code  []byte
	Tasks []Task
}

// Encode writes c to w in the exact layout spec §6 describes: header, CODE
// segment, TASK segment, all multi-byte fields little-endian.
func Encode(w io.Writer, c *Container) error {
	h := header{
		Magic:             Magic,
		Version:           Version,
		CodeSize:          uint32(len(c.Code)),
		TaskSegmentOffset: uint32(headerSize + len(c.Code)),
		TaskCount:         uint16(len(c.Tasks)),
	}
	ew := ngi.NewErrWriter(w)
	if err := binary.Write(ew, binary.LittleEndian, h); err != nil {
		return errors.Wrap(err, "write container header")
	}
	ew.Write(c.Code)
	for _, t := range c.Tasks {
		rec := make([]byte, TaskRecordSize)
		binary.LittleEndian.PutUint16(rec[0:2], t.ID)
		rec[2] = byte(t.Type)
		rec[3] = t.Priority
		binary.LittleEndian.PutUint32(rec[4:8], t.IntervalUs)
		binary.LittleEndian.PutUint16(rec[8:10], t.EntryPoint)
		binary.LittleEndian.PutUint16(rec[10:12], t.StackSize)
		ew.Write(rec)
	}
	if ew.Err != nil {
		return errors.Wrap(ew.Err, "write container")
	}
	return nil
}

// Decode reads a container image written by Encode.
func Decode(r io.Reader) (*Container, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "read container header")
	}
	if h.Magic != Magic {
		return nil, errors.Errorf("not a ZPLC container: bad magic %q", h.Magic[:])
	}
	if h.Version != Version {
		return nil, errors.Errorf("unsupported container version %d", h.Version)
	}
	code := make([]byte, h.CodeSize)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, errors.Wrap(err, "read CODE segment")
	}
	tasks := make([]Task, h.TaskCount)
	rec := make([]byte, TaskRecordSize)
	for i := range tasks {
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, errors.Wrap(err, "read TASK segment")
		}
		tasks[i] = Task{
			ID:         binary.LittleEndian.Uint16(rec[0:2]),
			Type:       TaskType(rec[2]),
			Priority:   rec[3],
			IntervalUs: binary.LittleEndian.Uint32(rec[4:8]),
			EntryPoint: binary.LittleEndian.Uint16(rec[8:10]),
			StackSize:  binary.LittleEndian.Uint16(rec[10:12]),
		}
	}
	return &Container{Code: code, Tasks: tasks}, nil
}

// Marshal is a convenience wrapper returning the encoded bytes directly,
// mirroring the teacher's Image.Save-to-a-byte-buffer use in its own
// tests (asm/example_test.go writes to a bytes.Buffer before comparing).
func Marshal(c *Container) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
