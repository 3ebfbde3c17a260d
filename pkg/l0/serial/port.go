// Package serial provides the line transport to the MCU over a serial
// port.
package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/teensy.go/pkg/l0/link"
)

// MaxLineLength bounds a line, longer input is dropped.
const MaxLineLength = 1024

// TCPPrefix marks a device reached over TCP.
const TCPPrefix = "tcp://"

// DialTimeout bounds connecting a TCP device.
var DialTimeout = 5 * time.Second

// Port implements link.Transport over a byte stream.
type Port struct {
	rwc        io.ReadWriteCloser
	setTimeout func(time.Duration) error

	readLock sync.Mutex
	pending  []byte
	chunk    [256]byte
	// skipping the rest of an oversized line.
	skipping bool
}

var _ link.Transport = (*Port)(nil)

// Open opens the serial device.
// A device like tcp://host:port connects to a simulated MCU instead.
func Open(conf Config) (*Port, error) {
	if strings.HasPrefix(conf.Device, TCPPrefix) {
		conn, err := net.DialTimeout("tcp", strings.TrimPrefix(conf.Device, TCPPrefix), DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", conf.Device, err)
		}
		glog.Infof("connected %s", conf.Device)
		return NewPort(conn)
	}
	sp, err := serial.Open(conf.Device, &serial.Mode{
		BaudRate: conf.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Device, err)
	}
	if err := sp.ResetInputBuffer(); err != nil {
		glog.Warningf("reset input buffer of %s: %v", conf.Device, err)
	}
	glog.Infof("opened %s at %d baud", conf.Device, conf.Baud)
	return &Port{rwc: sp, setTimeout: sp.SetReadTimeout}, nil
}

// Open opens the serial device.
func (c *Config) Open() (*Port, error) {
	return Open(*c)
}

// NewPort wraps a stream which supports read timeouts: a serial.Port
// or a net.Conn.
func NewPort(rwc io.ReadWriteCloser) (*Port, error) {
	p := &Port{rwc: rwc}
	switch s := rwc.(type) {
	case serial.Port:
		p.setTimeout = s.SetReadTimeout
	case net.Conn:
		p.setTimeout = func(d time.Duration) error {
			return s.SetReadDeadline(time.Now().Add(d))
		}
	default:
		return nil, fmt.Errorf("read timeout not supported by %T", rwc)
	}
	return p, nil
}

// ReadLine implements link.Transport.
func (p *Port) ReadLine(timeout time.Duration) (string, error) {
	p.readLock.Lock()
	defer p.readLock.Unlock()
	deadline := time.Now().Add(timeout)
	for {
		if line, ok := p.takeLine(); ok {
			return line, nil
		}
		remains := time.Until(deadline)
		if remains <= 0 {
			return "", link.ErrReadTimeout
		}
		if err := p.setTimeout(remains); err != nil {
			return "", err
		}
		n, err := p.rwc.Read(p.chunk[:])
		if n > 0 {
			p.pending = append(p.pending, p.chunk[:n]...)
		}
		if err != nil && !isTimeout(err) {
			return "", err
		}
	}
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.rwc.Close()
}

func (p *Port) takeLine() (string, bool) {
	for {
		pos := bytes.IndexByte(p.pending, '\n')
		if pos < 0 {
			if len(p.pending) > MaxLineLength {
				glog.Warningf("drop %d bytes without line terminator", len(p.pending))
				p.pending, p.skipping = p.pending[:0], true
			}
			return "", false
		}
		line := bytes.TrimRight(p.pending[:pos], "\r")
		p.pending = p.pending[pos+1:]
		if p.skipping {
			p.skipping = false
			continue
		}
		if len(line) > MaxLineLength {
			glog.Warningf("drop line of %d bytes", len(line))
			continue
		}
		return string(line), true
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
