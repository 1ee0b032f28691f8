// Package serial opens serial ports for line based device protocols such as light strip controllers.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
)

// Options to be passed to Open(), closely mirrors go.bug.st/serial's Mode.
type Options struct {
	BaudRate    int `json:"baud_rate" yaml:"baud_rate"`
	DataBits    int `json:"data_bits" yaml:"data_bits"`
	StopBits    StopBits      `json:"stop_bits" yaml:"stop_bits"`
	Parity      Parity        `json:"parity" yaml:"parity"`
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`
}

// DefaultOptions is 115200 8N1 with a one second read timeout.
func DefaultOptions() Options {
	return Options{BaudRate: 115200, DataBits: 8, StopBits: OneStopBit, Parity: NoParity, ReadTimeout: time.Second}
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disable parity control (default).
	NoParity Parity = iota
	// OddParity enable odd-parity check.
	OddParity
	// EvenParity enable even-parity check.
	EvenParity
	// MarkParity enable mark-parity (always 1) check.
	MarkParity
	// SpaceParity enable space-parity (always 0) check.
	SpaceParity
)

// StopBits describe a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits.
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits.
	TwoStopBits
)

// Normalize fills unset fields with defaults and rejects settings no UART supports.
func (o Options) Normalize() (Options, error) {
	def := DefaultOptions()
	if o.BaudRate <= 0 {
		o.BaudRate = def.BaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = def.DataBits
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return o, errors.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if o.StopBits < OneStopBit || o.StopBits > TwoStopBits {
		return o, errors.Errorf("invalid stop bits setting %d", o.StopBits)
	}
	if o.Parity < NoParity || o.Parity > SpaceParity {
		return o, errors.Errorf("invalid parity setting %d", o.Parity)
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	return o, nil
}

func (o Options) mode() *ser.Mode {
	return &ser.Mode{
		BaudRate: o.BaudRate,
		Parity:   ser.Parity(o.Parity),
		DataBits: o.DataBits,
		StopBits: ser.StopBits(o.StopBits),
	}
}

// Open attempts to open a serial device on the given path. It's a variable
// in case you need to override it during tests.
var Open = func(devicePath string, options Options) (io.ReadWriteCloser, error) {
	options, err := options.Normalize()
	if err != nil {
		return nil, err
	}
	device, err := ser.Open(devicePath, options.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial device %q", devicePath)
	}
	if err := device.SetReadTimeout(options.ReadTimeout); err != nil {
		return nil, errors.Wrap(err, "setting read timeout")
	}
	return device, nil
}

// SetOptions to change the configuration of a serial port already open.
var SetOptions = func(b io.ReadWriteCloser, options Options) error {
	options, err := options.Normalize()
	if err != nil {
		return err
	}
	p, ok := b.(ser.Port)
	if !ok {
		return errors.New("couldn't convert to underlying Port interface")
	}
	return p.SetMode(options.mode())
}
