package sensor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"vectionlab.net/vection/config"
)

// Port is the byte source the acquisition loop reads from. serial.Port
// satisfies it, so do SimulatedPort and MockPort.
type Port interface {
	io.Reader
	io.Closer
	// SetReadTimeout bounds every Read. A Read that times out returns
	// (0, nil), which is how go.bug.st/serial reports it.
	SetReadTimeout(t time.Duration) error
}

// Opener opens the port at path.
type Opener func(path string, opts PortOptions) (Port, error)

// PortOptions describes the serial line settings.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// PortOptionsFrom copies the line settings out of the sensor section.
func PortOptionsFrom(cfg config.SensorConfig) PortOptions {
	return PortOptions{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
	}
}

// parities maps the accepted Sensor.Parity spellings to their letter.
var parities = map[string]string{
	"": "N", "N": "N", "NONE": "N",
	"E": "E", "EVEN": "E",
	"O": "O", "ODD": "O",
}

// Normalize fills in 115200 8N1 for unset fields and rejects line
// settings the sensor firmware cannot speak.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}

	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("Sensor.DataBits must be 5 to 8, got %d", opts.DataBits)
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("Sensor.StopBits must be 1 or 2, got %d", opts.StopBits)
	}
	parity, ok := parities[strings.ToUpper(strings.TrimSpace(opts.Parity))]
	if !ok {
		return opts, fmt.Errorf("Sensor.Parity must be N, E or O, got %q", opts.Parity)
	}
	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial expects.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}

	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// SerialOpener opens a real serial device.
func SerialOpener(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// OpenerFor picks the simulated or the real serial opener.
func OpenerFor(cfg config.SensorConfig) Opener {
	if cfg.Simulate {
		return SimulatedOpener(cfg.Simulation)
	}
	return SerialOpener
}
