// Package serialstrip drives a light strip through a microcontroller speaking a line protocol over a serial port:
//
//	S <id> <r> <g> <b>   set one light
//	F <r> <g> <b>        fill every light
//	C                    clear, all lights off
//
// Each command is answered by a line reading OK; any other reply is an error.
package serialstrip

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/components/lightstrip"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/serial"
)

// Config locates the controller.
type Config struct {
	Path    string         `json:"path" yaml:"path"`
	Count   int            `json:"count" yaml:"count"`
	Options serial.Options `json:"options" yaml:"options"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.Path == "" {
		return errors.New("serial strip needs a device path")
	}
	if cfg.Count <= 0 {
		return errors.Errorf("serial strip needs a positive light count, got %d", cfg.Count)
	}
	_, err := cfg.Options.Normalize()
	return err
}

// Strip is a lightstrip.Driver over a serial line.
type Strip struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
	count  int
	logger logging.Logger
}

// Open opens the controller's serial port.
func Open(cfg Config, logger logging.Logger) (*Strip, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Path, cfg.Options)
	if err != nil {
		return nil, err
	}
	logger.Infow("opened serial light strip", "path", cfg.Path, "count", cfg.Count)
	return New(port, cfg.Count, logger), nil
}

// New wraps an already open connection to a controller driving count lights.
func New(port io.ReadWriteCloser, count int, logger logging.Logger) *Strip {
	return &Strip{port: port, reader: bufio.NewReader(port), count: count, logger: logger}
}

// Len returns the number of lights.
func (s *Strip) Len() int {
	return s.count
}

// Set sets one light.
func (s *Strip) Set(ctx context.Context, id int, c color.Color) error {
	if err := lightstrip.CheckID(id, s.count); err != nil {
		return err
	}
	n := lightstrip.ToNRGBA(c)
	return s.command(ctx, fmt.Sprintf("S %d %d %d %d", id, n.R, n.G, n.B))
}

// Fill sets every light.
func (s *Strip) Fill(ctx context.Context, c color.Color) error {
	n := lightstrip.ToNRGBA(c)
	return s.command(ctx, fmt.Sprintf("F %d %d %d", n.R, n.G, n.B))
}

// AllOff clears the strip. It ignores ctx so that cleanup after a cancellation still reaches the device.
func (s *Strip) AllOff(ctx context.Context) error {
	return s.command(context.WithoutCancel(ctx), "C")
}

// Close releases the serial port.
func (s *Strip) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

func (s *Strip) command(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debugw("serial strip command", "cmd", line)
	if _, err := io.WriteString(s.port, line+"\n"); err != nil {
		return errors.Wrapf(err, "writing %q", line)
	}
	reply, err := s.reader.ReadString('\n')
	if err != nil {
		return errors.Wrapf(err, "reading reply to %q", line)
	}
	if reply = strings.TrimSpace(reply); reply != "OK" {
		return errors.Errorf("controller rejected %q: %s", line, reply)
	}
	return nil
}
