// Package opener talks to the door-opener device.
//
// Every open is one TCP connection carrying one challenge-response exchange:
//
//	device -> client  4-byte random challenge
//	client -> device  relay(1) | challenge(4) | HMAC-SHA256(key, relay|challenge)(32)
//	device -> client  status bytes, then close; the last byte 0x00 means success
//
// Connections are never reused and failed attempts are never retried here.
package opener

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	ChallengeSize = 4
	TagSize       = sha256.Size
	FrameSize     = 1 + ChallengeSize + TagSize

	statusOK = 0x00

	defaultConnectTimeout  = 3 * time.Second
	defaultResponseTimeout = 5 * time.Second
)

var (
	// ErrProtocol wraps every way an open attempt can fail.
	ErrProtocol = errors.New("opener: handshake failed")

	// ErrRejected means the device answered with a non-zero status.
	ErrRejected = fmt.Errorf("%w: device reported failure", ErrProtocol)

	// ErrNoStatus means the device closed without sending a status byte.
	ErrNoStatus = fmt.Errorf("%w: no status received", ErrProtocol)
)

type Config struct {
	Addr            string
	Key             []byte
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
}

// Client performs open handshakes against one opener device. It is safe for
// concurrent use; each call owns its own socket.
type Client struct {
	addr            string
	key             []byte
	dialer          net.Dialer
	responseTimeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("opener: address is required")
	}
	if len(cfg.Key) == 0 {
		return nil, errors.New("opener: device key is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Client{
		addr:            cfg.Addr,
		key:             key,
		dialer:          net.Dialer{Timeout: cfg.ConnectTimeout},
		responseTimeout: cfg.ResponseTimeout,
	}, nil
}

// Open asks the device to actuate relay. It returns nil only when the device
// confirmed with a final 0x00 byte; any other outcome is an ErrProtocol.
func (c *Client) Open(ctx context.Context, relay uint8) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrProtocol, c.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %v", ErrProtocol, err)
	}

	// Unblock pending I/O if the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	var challenge [ChallengeSize]byte
	if _, err := io.ReadFull(conn, challenge[:]); err != nil {
		return fmt.Errorf("%w: read challenge: %v", ErrProtocol, err)
	}

	if _, err := conn.Write(Frame(c.key, relay, challenge)); err != nil {
		return fmt.Errorf("%w: write frame: %v", ErrProtocol, err)
	}

	status, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("%w: read status: %v", ErrProtocol, err)
	}
	if len(status) == 0 {
		return ErrNoStatus
	}
	if last := status[len(status)-1]; last != statusOK {
		return fmt.Errorf("%w (status 0x%02x)", ErrRejected, last)
	}
	return nil
}

// Frame builds the authenticated command for relay and challenge.
func Frame(key []byte, relay uint8, challenge [ChallengeSize]byte) []byte {
	frame := make([]byte, 0, FrameSize)
	frame = append(frame, relay)
	frame = append(frame, challenge[:]...)

	mac := hmac.New(sha256.New, key)
	mac.Write(frame)
	return mac.Sum(frame)
}
