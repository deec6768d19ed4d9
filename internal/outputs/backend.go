package outputs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Backend abstracts the physical output lines so the bank can run against
// real GPIO or a simulation.
type Backend interface {
	Write(pin int, value int) error
	Read(pin int) (int, error)
}

// MemBackend keeps pin values in memory. It backs tests and hosts without
// GPIO hardware.
type MemBackend struct {
	values map[int]int
}

func NewMemBackend() *MemBackend {
	return &MemBackend{values: make(map[int]int)}
}

func (b *MemBackend) Write(pin, value int) error {
	b.values[pin] = value
	return nil
}

func (b *MemBackend) Read(pin int) (int, error) {
	return b.values[pin], nil
}

// SysfsBackend drives Linux GPIO through /sys/class/gpio. Pins are exported
// lazily and configured as outputs on first write.
type SysfsBackend struct {
	root     string
	exported map[int]bool
}

func NewSysfsBackend() *SysfsBackend {
	return &SysfsBackend{root: "/sys/class/gpio", exported: make(map[int]bool)}
}

// NewSysfsBackendAt is NewSysfsBackend with a custom sysfs root, for tests.
func NewSysfsBackendAt(root string) *SysfsBackend {
	return &SysfsBackend{root: root, exported: make(map[int]bool)}
}

func (b *SysfsBackend) pinDir(pin int) string {
	return filepath.Join(b.root, fmt.Sprintf("gpio%d", pin))
}

func (b *SysfsBackend) export(pin int) error {
	if b.exported[pin] {
		return nil
	}
	if _, err := os.Stat(b.pinDir(pin)); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(b.root, "export"), []byte(strconv.Itoa(pin)), 0644); err != nil {
			return fmt.Errorf("exporting gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(b.pinDir(pin), "direction"), []byte("out"), 0644); err != nil {
		return fmt.Errorf("setting gpio %d direction: %w", pin, err)
	}
	b.exported[pin] = true
	return nil
}

func (b *SysfsBackend) Write(pin, value int) error {
	if err := b.export(pin); err != nil {
		return err
	}
	v := "0"
	if value != 0 {
		v = "1"
	}
	return os.WriteFile(filepath.Join(b.pinDir(pin), "value"), []byte(v), 0644)
}

func (b *SysfsBackend) Read(pin int) (int, error) {
	raw, err := os.ReadFile(filepath.Join(b.pinDir(pin), "value"))
	if err != nil {
		return 0, err
	}
	if len(raw) > 0 && raw[0] == '1' {
		return 1, nil
	}
	return 0, nil
}
