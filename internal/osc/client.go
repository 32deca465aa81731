package osc

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultHostIP is the mixer address used until a preset or the user sets one
	DefaultHostIP = "127.0.0.1"

	// DefaultHostPort is the mixer's OSC port
	DefaultHostPort = 10024
)

var (
	// ErrConnection is returned for a malformed outbound target
	ErrConnection = errors.New("invalid osc target")

	// ErrNotConnected is returned by Send before a successful Connect
	ErrNotConnected = errors.New("osc client not connected")
)

// ConnectionConfig is the outbound OSC target
type ConnectionConfig struct {
	HostIP   string
	HostPort int
}

func (c ConnectionConfig) String() string {
	return net.JoinHostPort(c.HostIP, strconv.Itoa(c.HostPort))
}

// ValidPort reports whether p is a usable UDP port
func ValidPort(p int) bool {
	return p >= 1 && p <= 65535
}

// Client sends OSC messages to the mixer over a single UDP socket. Sends
// are serialized; UDP gives no delivery guarantee so write failures are only
// logged.
type Client struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	target ConnectionConfig
}

// NewClient creates an unconnected client targeting the default address
func NewClient() *Client {
	return &Client{
		target: ConnectionConfig{HostIP: DefaultHostIP, HostPort: DefaultHostPort},
	}
}

// Connect points the client at ip:port, replacing the current socket. A
// malformed target leaves the client as it was.
func (c *Client) Connect(ip string, port int) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return errors.Wrap(ErrConnection, "empty host")
	}
	if !ValidPort(port) {
		return errors.Wrapf(ErrConnection, "port %d", port)
	}

	target := ConnectionConfig{HostIP: ip, HostPort: port}
	addr, err := net.ResolveUDPAddr("udp", target.String())
	if err != nil {
		return errors.Wrapf(ErrConnection, "%s: %v", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return errors.Wrapf(ErrConnection, "%s: %v", target, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.target = target
	log.Infof("osc: sending to %s", target)
	return nil
}

// Send transmits address with a single float argument
func (c *Client) Send(address string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	data, err := osc.NewMessage(address, float32(value)).MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "encoding %s", address)
	}
	if _, err := c.conn.Write(data); err != nil {
		log.Debugf("osc: send %s to %s: %v", address, c.target, err)
	}
	return nil
}

// Target returns the last target set by Connect, or the default
func (c *Client) Target() ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Connected reports whether Connect has succeeded
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close releases the socket. The target is kept.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
