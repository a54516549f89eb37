package commdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const defaultPacketSize = 64

// USBPort talks to a device over a pair of bulk endpoints.
type USBPort struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize   int
	readTimeout  time.Duration
	writeTimeout time.Duration
	pending      []byte
}

// OpenUSB opens the first device matching vid:pid and wraps it in a Stream.
func OpenUSB(vid, pid uint16, opts ...StreamOption) (*Stream, error) {
	port, err := NewUSBPort(vid, pid)
	if err != nil {
		return nil, err
	}
	return NewStream(port, opts...), nil
}

// NewUSBPort opens the first device matching vid:pid and claims its bulk
// interface.
func NewUSBPort(vid, pid uint16) (*USBPort, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: usb: %v", ErrPortAccess, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: device %04X:%04X not found", ErrPortAccess, vid, pid)
	}

	// not supported everywhere
	_ = dev.SetAutoDetach(true)

	p := &USBPort{
		ctx:          ctx,
		dev:          dev,
		packetSize:   defaultPacketSize,
		readTimeout:  DefaultTimeout,
		writeTimeout: DefaultTimeout,
	}
	if err := p.claimInterface(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// claimInterface prefers a vendor-specific interface and falls back to the
// first one that carries bulk endpoints in both directions.
func (p *USBPort) claimInterface() error {
	cfg, err := p.dev.Config(1)
	if err != nil {
		return fmt.Errorf("%w: usb config: %v", ErrPortAccess, err)
	}
	p.cfg = cfg

	num := -1
	for _, desc := range cfg.Desc.Interfaces {
		if len(desc.AltSettings) == 0 {
			continue
		}
		alt := desc.AltSettings[0]
		if !hasBulkPair(alt) {
			continue
		}
		if alt.Class == gousb.ClassVendorSpec {
			num = desc.Number
			break
		}
		if num < 0 {
			num = desc.Number
		}
	}
	if num < 0 {
		return fmt.Errorf("%w: no interface with bulk endpoints", ErrPortAccess)
	}

	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("%w: claim interface %d: %v", ErrPortAccess, num, err)
	}
	p.intf = intf
	return p.openEndpoints()
}

func hasBulkPair(alt gousb.InterfaceSetting) bool {
	var in, out bool
	for _, ep := range alt.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			in = true
		} else {
			out = true
		}
	}
	return in && out
}

func (p *USBPort) openEndpoints() error {
	var inNum, outNum int
	for _, ep := range p.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum == 0 {
			inNum = ep.Number
			if ep.MaxPacketSize > 0 {
				p.packetSize = ep.MaxPacketSize
			}
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum == 0 {
			outNum = ep.Number
		}
	}

	epOut, err := p.intf.OutEndpoint(outNum)
	if err != nil {
		return fmt.Errorf("%w: open OUT endpoint: %v", ErrPortAccess, err)
	}
	epIn, err := p.intf.InEndpoint(inNum)
	if err != nil {
		return fmt.Errorf("%w: open IN endpoint: %v", ErrPortAccess, err)
	}
	p.epOut, p.epIn = epOut, epIn
	return nil
}

// PacketSize returns the IN endpoint max packet size.
func (p *USBPort) PacketSize() int {
	return p.packetSize
}

func (p *USBPort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *USBPort) SetWriteTimeout(t time.Duration) error {
	p.writeTimeout = t
	return nil
}

// ResetInputBuffer drops bytes left over from a previous packet.
func (p *USBPort) ResetInputBuffer() error {
	p.pending = nil
	return nil
}

// Read returns 0, nil when no packet arrives within the read timeout.
func (p *USBPort) Read(b []byte) (int, error) {
	if p.epIn == nil {
		return 0, ErrNotOpen
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.readTimeout)
	defer cancel()

	packet := make([]byte, p.packetSize)
	n, err := p.epIn.ReadContext(ctx, packet)
	if err != nil && n == 0 {
		if usbTimeout(err) {
			return 0, nil
		}
		return 0, err
	}
	k := copy(b, packet[:n])
	if k < n {
		p.pending = append(p.pending, packet[k:n]...)
	}
	return k, nil
}

func (p *USBPort) Write(b []byte) (int, error) {
	if p.epOut == nil {
		return 0, ErrNotOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	n, err := p.epOut.WriteContext(ctx, b)
	if err != nil && usbTimeout(err) {
		return n, fmt.Errorf("usb write: %w", context.DeadlineExceeded)
	}
	return n, err
}

// Close releases the interface, device and context.
func (p *USBPort) Close() error {
	if p.intf != nil {
		p.intf.Close()
		p.intf = nil
	}
	if p.cfg != nil {
		_ = p.cfg.Close()
		p.cfg = nil
	}
	if p.dev != nil {
		_ = p.dev.Close()
		p.dev = nil
	}
	if p.ctx != nil {
		_ = p.ctx.Close()
		p.ctx = nil
	}
	p.epIn, p.epOut = nil, nil
	return nil
}

func usbTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.ErrorTimeout)
}
