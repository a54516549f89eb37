package commdriver

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// SerialConfig selects a serial device and its line settings.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int    // 5..8, zero means 8
	Parity   string // none, even, odd, mark, space
	StopBits string // 1, 1.5, 2
}

// DefaultSerialConfig returns 115200 8N1 on the given device.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:   device,
		BaudRate: 115200,
		DataBits: 8,
		Parity:   "none",
		StopBits: "1",
	}
}

// Mode converts the configuration to a serial.Mode.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: baud rate %d", ErrInvalidParam, c.BaudRate)
	}
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("%w: data bits %d", ErrInvalidParam, c.DataBits)
	}

	switch strings.ToLower(c.Parity) {
	case "", "none", "n":
		mode.Parity = serial.NoParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "mark", "m":
		mode.Parity = serial.MarkParity
	case "space", "s":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %q", ErrInvalidParam, c.Parity)
	}

	switch c.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %q", ErrInvalidParam, c.StopBits)
	}
	return mode, nil
}

// serialOpener is swapped out by tests.
var serialOpener = func(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// serialLister is swapped out by tests.
var serialLister = serial.GetPortsList

// OpenSerial opens the configured device and wraps it in a Stream.
func OpenSerial(cfg SerialConfig, opts ...StreamOption) (*Stream, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: no serial device", ErrInvalidParam)
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	port, err := serialOpener(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPortAccess, cfg.Device, err)
	}

	s := NewStream(port, opts...)
	s.log.Debug().
		Str("device", cfg.Device).
		Int("baud", mode.BaudRate).
		Msg("serial port opened")
	return s, nil
}

func serialInterfaces(log zerolog.Logger) []InterfaceInfo {
	names, err := serialLister()
	if err != nil {
		log.Debug().Err(err).Msg("serial enumeration failed")
		return nil
	}
	infos := make([]InterfaceInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, InterfaceInfo{
			Kind:        InterfaceKindSerial,
			Description: "Serial port " + name,
			Path:        name,
		})
	}
	return infos
}
