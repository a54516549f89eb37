package commdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
)

// InterfaceKind categorizes transports.
type InterfaceKind string

const (
	InterfaceKindSerial InterfaceKind = "serial"
	InterfaceKindUSB    InterfaceKind = "usb"
	InterfaceKindSim    InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected transport.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Path        string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Path != "" {
		return fmt.Sprintf("%s %s", i.Kind, i.Path)
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Kind, i.VendorID, i.ProductID)
}

// DiscoverInterfaces lists serial ports and known USB bridges. The simulator
// entry is always present so scripts can be dry-run without hardware.
func DiscoverInterfaces(ctx context.Context, log zerolog.Logger) ([]InterfaceInfo, error) {
	results := serialInterfaces(log)

	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, ctx.Err()
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (InterfaceInfo, bool) {
	for _, known := range knownUSBBridges {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return InterfaceInfo{
				Kind:        InterfaceKindUSB,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
				Path:        fmt.Sprintf("bus %d addr %d", desc.Bus, desc.Address),
			}, true
		}
	}
	return InterfaceInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownUSBBridges = []knownUSBDevice{
	{VendorID: 0x1a86, ProductID: 0x55da, Description: "WCH CH347 (mode 1)"},
	{VendorID: 0x1a86, ProductID: 0x55db, Description: "WCH CH347 (mode 2)"},
	{VendorID: 0x1a86, ProductID: 0x55de, Description: "WCH CH347F"},
	{VendorID: 0x1a86, ProductID: 0x7523, Description: "WCH CH340"},
	{VendorID: 0x1a86, ProductID: 0x5523, Description: "WCH CH341"},
	{VendorID: 0x0403, ProductID: 0x6001, Description: "FTDI FT232R"},
}
