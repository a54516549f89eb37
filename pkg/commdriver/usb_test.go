package commdriver

import (
	"testing"
	"time"

	"github.com/google/gousb"
)

func TestClassifyUSBDevice(t *testing.T) {
	desc := &gousb.DeviceDesc{Vendor: 0x1a86, Product: 0x55de, Bus: 1, Address: 7}
	info, ok := classifyUSBDevice(desc)
	if !ok {
		t.Fatalf("CH347F not recognised")
	}
	if info.Kind != InterfaceKindUSB || info.Path != "bus 1 addr 7" {
		t.Fatalf("info = %+v", info)
	}

	if _, ok := classifyUSBDevice(&gousb.DeviceDesc{Vendor: 0xdead, Product: 0xbeef}); ok {
		t.Fatalf("unknown device classified")
	}
}

func TestUSBPortClosedOperations(t *testing.T) {
	var p USBPort
	if _, err := p.Read(make([]byte, 1)); err != ErrNotOpen {
		t.Fatalf("Read error = %v", err)
	}
	if _, err := p.Write([]byte{1}); err != ErrNotOpen {
		t.Fatalf("Write error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// Integration test - only runs with a CH347 attached
func TestUSBPortIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s, err := OpenUSB(0x1a86, 0x55de)
	if err != nil {
		t.Skipf("no CH347F found: %v", err)
	}
	defer s.Close()

	if _, err := s.Write(time.Second, []byte{0x00}); err != nil {
		t.Fatalf("write: %v", err)
	}
}
