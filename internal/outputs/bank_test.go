package outputs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
)

func TestNewBankInitializesAllLinesOff(t *testing.T) {
	backend := NewMemBackend()
	bank, err := NewBank(testr.New(t), backend, nil)
	if err != nil {
		t.Fatal(err)
	}

	snap := bank.Snapshot()
	if len(snap) != 9 {
		t.Fatalf("expected 9 default lines, got %d", len(snap))
	}
	for name, state := range snap {
		if state != "off" {
			t.Errorf("line %s initialized to %s, want off", name, state)
		}
	}
}

func TestSetIsCaseInsensitive(t *testing.T) {
	backend := NewMemBackend()
	bank, err := NewBank(testr.New(t), backend, []Line{{Name: "d0", Pin: 16}})
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := bank.Set("D0", true); err != nil || !ok {
		t.Fatalf("expected D0 to resolve to d0: ok=%v err=%v", ok, err)
	}
	if on, _ := bank.Get("d0"); !on {
		t.Error("d0 not on after Set")
	}
	if v, _ := backend.Read(16); v != 1 {
		t.Errorf("pin 16 value = %d, want 1", v)
	}
}

func TestSetUnknownLineIsRejected(t *testing.T) {
	bank, err := NewBank(testr.New(t), NewMemBackend(), []Line{{Name: "d0", Pin: 16}})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := bank.Set("d9", true)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unknown line accepted")
	}
	if _, ok := bank.Get("d9"); ok {
		t.Error("unknown line materialized in the bank")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	_, err := NewBank(testr.New(t), NewMemBackend(), []Line{
		{Name: "d0", Pin: 16},
		{Name: "D0", Pin: 5},
	})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestSnapshotAlwaysComplete(t *testing.T) {
	bank, err := NewBank(testr.New(t), NewMemBackend(), nil)
	if err != nil {
		t.Fatal(err)
	}
	bank.Set("d0", true)
	bank.Set("d5", true)

	snap := bank.Snapshot()
	for _, name := range bank.Names() {
		v, ok := snap[name]
		if !ok {
			t.Errorf("snapshot missing line %s", name)
		}
		if v != "on" && v != "off" {
			t.Errorf("line %s has value %q", name, v)
		}
	}
	if snap["d0"] != "on" || snap["d5"] != "on" || snap["d1"] != "off" {
		t.Errorf("unexpected snapshot: %v", snap)
	}
}

type failingBackend struct {
	*MemBackend
	failPins map[int]bool
}

func (b *failingBackend) Write(pin, value int) error {
	if b.failPins[pin] {
		return fmt.Errorf("pin %d stuck", pin)
	}
	return b.MemBackend.Write(pin, value)
}

func TestSetBackendFailureIsAnError(t *testing.T) {
	backend := &failingBackend{MemBackend: NewMemBackend(), failPins: map[int]bool{}}
	bank, err := NewBank(testr.New(t), backend, []Line{
		{Name: "d0", Pin: 16},
		{Name: "d1", Pin: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	backend.failPins[16] = true

	ok, err := bank.Set("d0", true)
	if err == nil {
		t.Fatal("expected an error from the stuck pin")
	}
	if ok {
		t.Error("failed write reported as applied")
	}
	if on, _ := bank.Get("d0"); on {
		t.Error("failed write changed the recorded state")
	}

	// The failure is per line, not per bank.
	if ok, err := bank.Set("d1", true); err != nil || !ok {
		t.Fatalf("healthy line affected: ok=%v err=%v", ok, err)
	}
}

func TestSysfsBackendWritesValueFiles(t *testing.T) {
	root := t.TempDir()
	// Pre-create the pin directory so no export is attempted.
	pinDir := filepath.Join(root, "gpio16")
	if err := os.MkdirAll(pinDir, 0755); err != nil {
		t.Fatal(err)
	}

	backend := NewSysfsBackendAt(root)
	if err := backend.Write(16, 1); err != nil {
		t.Fatal(err)
	}
	if v, err := backend.Read(16); err != nil || v != 1 {
		t.Fatalf("read back %d, %v", v, err)
	}
	if err := backend.Write(16, 0); err != nil {
		t.Fatal(err)
	}
	if v, _ := backend.Read(16); v != 0 {
		t.Fatalf("read back %d, want 0", v)
	}
}
