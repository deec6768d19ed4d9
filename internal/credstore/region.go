package credstore

import (
	"fmt"
	"os"
)

// Region is a fixed-capacity persistent byte region. Writes become durable
// on Sync.
type Region interface {
	Read(buf []byte) error
	Write(off int, p []byte) error
	Sync() error
	Close() error
}

// FileRegion stores the region in a regular file of exactly Capacity bytes.
type FileRegion struct {
	f *os.File
}

func OpenFileRegion(path string) (*FileRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != Capacity {
		if err := f.Truncate(Capacity); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FileRegion{f: f}, nil
}

func (r *FileRegion) Read(buf []byte) error {
	if len(buf) > Capacity {
		return fmt.Errorf("read of %d bytes exceeds region capacity %d", len(buf), Capacity)
	}
	_, err := r.f.ReadAt(buf, 0)
	return err
}

func (r *FileRegion) Write(off int, p []byte) error {
	if off < 0 || off+len(p) > Capacity {
		return fmt.Errorf("write of %d bytes at %d exceeds region capacity %d", len(p), off, Capacity)
	}
	_, err := r.f.WriteAt(p, int64(off))
	return err
}

func (r *FileRegion) Sync() error {
	return r.f.Sync()
}

func (r *FileRegion) Close() error {
	return r.f.Close()
}

// MemRegion is an in-memory region for tests.
type MemRegion struct {
	buf [Capacity]byte
}

func (r *MemRegion) Read(buf []byte) error {
	copy(buf, r.buf[:])
	return nil
}

func (r *MemRegion) Write(off int, p []byte) error {
	if off < 0 || off+len(p) > Capacity {
		return fmt.Errorf("write of %d bytes at %d exceeds region capacity %d", len(p), off, Capacity)
	}
	copy(r.buf[off:], p)
	return nil
}

func (r *MemRegion) Sync() error { return nil }

func (r *MemRegion) Close() error { return nil }

// Bytes exposes the raw region content, for tests that assert the layout.
func (r *MemRegion) Bytes() []byte {
	out := make([]byte, Capacity)
	copy(out, r.buf[:])
	return out
}
