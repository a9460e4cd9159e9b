// Package samp queries SA-MP and open.mp game servers over their UDP
// query protocol.
package samp

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// PlayerListLimit is the player count above which servers stop
// answering the client list query.
const PlayerListLimit = 100

const maxPacketSize = 4096

// ServerStatus is what one query round returns.
type ServerStatus struct {
	Host string // as requested
	Port int

	Hostname   string
	Gamemode   string
	Language   string
	Password   bool
	Players    int
	MaxPlayers int

	Rules      []Rule   // in server order
	PlayerList []Player // nil when the server did not send it
	Ping       time.Duration
}

// Address returns host:port as requested.
func (s *ServerStatus) Address() string { return domain.FullIP(s.Host, s.Port) }

// Rule returns the value of a named rule, or "".
func (s *ServerStatus) Rule(name string) string {
	for _, r := range s.Rules {
		if r.Name == name {
			return r.Value
		}
	}
	return ""
}

type Rule struct {
	Name  string
	Value string
}

type Player struct {
	Name  string
	Score int
}

// Querier fetches the live status of a game server.
type Querier interface {
	Query(ctx context.Context, host string, port int) (*ServerStatus, error)
}

// Resolver turns a hostname into IPv4 addresses.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Client is the UDP Querier.
type Client struct {
	timeout  time.Duration
	resolver Resolver
	log      logger.Logger
}

// NewClient creates a client whose single exchanges time out after
// timeout. A nil resolver uses net.DefaultResolver.
func NewClient(timeout time.Duration, resolver Resolver, log logger.Logger) *Client {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{timeout: timeout, resolver: resolver, log: log}
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrUpstreamQueryFailed, fmt.Sprintf(format, args...))
}

// Query runs info, rules, client list and ping exchanges against
// host:port. Info and rules are required; a missing client list or
// ping answer is tolerated.
func (c *Client) Query(ctx context.Context, host string, port int) (*ServerStatus, error) {
	host, port, err := domain.NormalizeAddress(host, port)
	if err != nil {
		return nil, failed("%v", err)
	}

	addr, err := c.resolve(ctx, host, port)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, failed("dial %s: %v", addr, err)
	}
	defer func() { _ = conn.Close() }()

	st := &ServerStatus{Host: host, Port: port}

	started := time.Now()
	payload, err := c.exchange(ctx, conn, addr, OpInfo, nil)
	if err != nil {
		return nil, failed("info %s: %v", addr, err)
	}
	infoRTT := time.Since(started)
	if err := parseInfo(payload, st); err != nil {
		return nil, failed("info %s: %v", addr, err)
	}

	payload, err = c.exchange(ctx, conn, addr, OpRules, nil)
	if err != nil {
		return nil, failed("rules %s: %v", addr, err)
	}
	if st.Rules, err = parseRules(payload); err != nil {
		return nil, failed("rules %s: %v", addr, err)
	}

	if st.Players <= PlayerListLimit {
		payload, err = c.exchange(ctx, conn, addr, OpClients, nil)
		if err == nil {
			st.PlayerList, err = parseClients(payload)
		}
		if err != nil {
			c.log.Debug("client list unavailable", logger.String("addr", addr.String()), logger.Error(err))
			st.PlayerList = nil
		}
	}

	st.Ping = infoRTT
	if rtt, err := c.ping(ctx, conn, addr); err == nil {
		st.Ping = rtt
	} else {
		c.log.Debug("ping unanswered", logger.String("addr", addr.String()), logger.Error(err))
	}
	return st, nil
}

func (c *Client) resolve(ctx context.Context, host string, port int) (netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if !ip.Is4() && !ip.Is4In6() {
			return netip.AddrPort{}, failed("%s is not an IPv4 address", host)
		}
		return netip.AddrPortFrom(ip.Unmap(), uint16(port)), nil
	}

	ips, err := c.resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.AddrPort{}, failed("resolve %s: %v", host, err)
	}
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			return netip.AddrPortFrom(ip.Unmap(), uint16(port)), nil
		}
	}
	return netip.AddrPort{}, failed("resolve %s: no IPv4 address", host)
}

func (c *Client) ping(ctx context.Context, conn *net.UDPConn, addr netip.AddrPort) (time.Duration, error) {
	challenge := make([]byte, 4)
	if _, err := rand.Read(challenge); err != nil {
		return 0, err
	}

	started := time.Now()
	payload, err := c.exchange(ctx, conn, addr, OpPing, challenge)
	if err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(payload, challenge) {
		return 0, errors.New("ping challenge not echoed")
	}
	return time.Since(started), nil
}

// exchange sends one request and waits for the response carrying the
// same header, dropping unrelated datagrams.
func (c *Client) exchange(ctx context.Context, conn *net.UDPConn, addr netip.AddrPort, op byte, extra []byte) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	req := buildRequest(addr, op, extra)
	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	buf := make([]byte, maxPacketSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		if n >= headerSize && bytes.Equal(buf[:headerSize], req[:headerSize]) {
			out := make([]byte, n-headerSize)
			copy(out, buf[headerSize:n])
			return out, nil
		}
	}
}
