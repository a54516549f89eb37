package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceComm/internal/config"
	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/OpenTraceLab/OpenTraceComm/pkg/report"
	"github.com/spf13/cobra"
)

// Driver flags shared by run and interfaces
var (
	driverKind string
	portName   string
	baudRate   int
	usbVID     uint16
	usbPID     uint16
)

func addDriverFlags(c *cobra.Command) {
	c.Flags().StringVar(&driverKind, "driver", "", "driver kind: sim, serial or usb")
	c.Flags().StringVarP(&portName, "port", "p", "", "serial device, e.g. /dev/ttyUSB0 or COM3")
	c.Flags().IntVar(&baudRate, "baud", 0, "serial baud rate")
	c.Flags().Uint16Var(&usbVID, "vid", 0, "USB vendor ID")
	c.Flags().Uint16Var(&usbPID, "pid", 0, "USB product ID")
}

// applyDriverFlags copies explicitly set flags over the loaded config.
func applyDriverFlags(c *cobra.Command, dc *config.DriverConfig) {
	if c.Flags().Changed("driver") {
		dc.Kind = driverKind
	}
	if c.Flags().Changed("port") {
		dc.Port = portName
	}
	if c.Flags().Changed("baud") {
		dc.BaudRate = baudRate
	}
	if c.Flags().Changed("vid") {
		dc.VID = usbVID
	}
	if c.Flags().Changed("pid") {
		dc.PID = usbPID
	}
}

// openDriver opens the configured port. The simulator echoes every write.
func openDriver(c *config.Config) (commdriver.Driver, error) {
	opts := []commdriver.StreamOption{
		commdriver.WithIdleGap(c.Script.IdleGapDuration()),
		commdriver.WithLogger(log),
	}

	switch strings.ToLower(c.Driver.Kind) {
	case config.DriverSim:
		sim := commdriver.NewSimPort()
		sim.OnWrite = commdriver.Echo()
		return commdriver.NewStream(sim, opts...), nil
	case config.DriverSerial:
		sc := commdriver.SerialConfig{
			Device:   c.Driver.Port,
			BaudRate: c.Driver.BaudRate,
			DataBits: c.Driver.DataBits,
			Parity:   c.Driver.Parity,
			StopBits: c.Driver.StopBits,
		}
		return commdriver.OpenSerial(sc, opts...)
	case config.DriverUSB:
		return commdriver.OpenUSB(c.Driver.VID, c.Driver.PID, opts...)
	default:
		return nil, fmt.Errorf("unknown driver %q", c.Driver.Kind)
	}
}

// driverLabel names the driver in run reports.
func driverLabel(dc config.DriverConfig) string {
	switch strings.ToLower(dc.Kind) {
	case config.DriverSerial:
		return "serial:" + dc.Port
	case config.DriverUSB:
		return fmt.Sprintf("usb:%04x:%04x", dc.VID, dc.PID)
	default:
		return dc.Kind
	}
}

// openRecorders builds the configured result sinks. The returned close
// function releases all of them.
func openRecorders(rc config.ReportConfig) (report.Recorder, func() error, error) {
	var (
		recs    report.Multi
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if rc.SQLite != "" {
		store, err := report.OpenSQLite(rc.SQLite)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, store)
		closers = append(closers, store.Close)
	}
	if rc.MQTT.Broker != "" {
		pub, err := report.ConnectMQTT(report.MQTTConfig{
			Broker:      rc.MQTT.Broker,
			ClientID:    rc.MQTT.ClientID,
			Username:    rc.MQTT.Username,
			Password:    rc.MQTT.Password,
			TopicPrefix: rc.MQTT.Topic,
			QoS:         rc.MQTT.QoS,
			Retain:      rc.MQTT.Retain,
		})
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		recs = append(recs, pub)
		closers = append(closers, pub.Close)
	}

	if len(recs) == 0 {
		return nil, closeAll, nil
	}
	return recs, closeAll, nil
}
