// Package snapshot saves and loads the multiplexing state of an instance:
// the slot table, the active context, the queued commands and the engine's
// house table. Files are a zstd stream holding a JSON header line followed
// by the JSON body.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
	"github.com/nstehr/vimy/vimy-instance/registry"
	"github.com/nstehr/vimy/vimy-instance/session"
)

// Version is bumped whenever the body layout changes.
const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version     int       `json:"version"`
	InstanceID  uuid.UUID `json:"instanceId"`
	Frame       uint32    `json:"frame"`
	Multiplayer bool      `json:"multiplayer"`
	SavedAt     time.Time `json:"savedAt"`
}

type Snapshot struct {
	Header Header `json:"header"`

	Ghosts  bool             `json:"ghosts"`
	Slots   []registry.Slot  `json:"slots"`
	Session session.Snapshot `json:"session"`

	// Pending keeps its frame order. Outgoing holds commands staged since
	// the last tick.
	Pending  []queue.Command `json:"pending"`
	Outgoing []queue.Command `json:"outgoing"`
	Seq      uint64          `json:"seq"`

	Placement [model.MaxPlayers]*model.ObjectRef `json:"placement"`
	Houses    []model.HouseStatus                 `json:"houses"`
	Engine    json.RawMessage                     `json:"engine,omitempty"`
}

// Encode writes snap to w.
func Encode(w io.Writer, snap *Snapshot) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := json.NewEncoder(bw).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Header = h
	return &snap, nil
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("snapshot version %d: %w", h.Version, ErrVersion)
	}
	return h, nil
}

// WriteFile saves snap to path. The file is written next to path and
// renamed into place.
func WriteFile(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ReadHeader returns only the header of the snapshot at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}
