package samp

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// fakeServer answers queries from canned payloads. Opcodes without a
// payload are ignored, like a full server ignoring the client list.
type fakeServer struct {
	conn     *net.UDPConn
	payloads map[byte][]byte
	echoPing bool
}

func startFakeServer(t *testing.T, payloads map[byte][]byte, echoPing bool) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	s := &fakeServer{conn: conn, payloads: payloads, echoPing: echoPing}
	t.Cleanup(func() { _ = conn.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) port() int { return s.conn.LocalAddr().(*net.UDPAddr).Port }

func (s *fakeServer) serve() {
	buf := make([]byte, 512)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n < headerSize || string(buf[:4]) != magic {
			continue
		}
		op := buf[headerSize-1]
		resp := append([]byte{}, buf[:headerSize]...)
		switch {
		case op == OpPing && s.echoPing:
			resp = append(resp, buf[headerSize:n]...)
		case s.payloads[op] != nil:
			resp = append(resp, s.payloads[op]...)
		default:
			continue
		}
		_, _ = s.conn.WriteToUDP(resp, from)
	}
}

func infoPayload(password bool, players, maxPlayers uint16, hostname, gamemode, language string) []byte {
	var b []byte
	if password {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = binary.LittleEndian.AppendUint16(b, players)
	b = binary.LittleEndian.AppendUint16(b, maxPlayers)
	for _, s := range []string{hostname, gamemode, language} {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
		b = append(b, s...)
	}
	return b
}

func rulesPayload(pairs ...string) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(pairs)/2))
	for _, s := range pairs {
		b = append(b, byte(len(s)))
		b = append(b, s...)
	}
	return b
}

func clientsPayload(players ...Player) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(players)))
	for _, p := range players {
		b = append(b, byte(len(p.Name)))
		b = append(b, p.Name...)
		b = binary.LittleEndian.AppendUint32(b, uint32(int32(p.Score)))
	}
	return b
}

func TestQuery(t *testing.T) {
	srv := startFakeServer(t, map[byte][]byte{
		OpInfo:    infoPayload(false, 2, 50, "Madeline Freeroam", "Freeroam 1.0", "English"),
		OpRules:   rulesPayload("version", "omp 1.2.0", "weburl", "open.mp"),
		OpClients: clientsPayload(Player{Name: "Kalcor", Score: 10}, Player{Name: "Y_Less", Score: -3}),
	}, true)

	client := NewClient(500*time.Millisecond, nil, logger.Nop())
	st, err := client.Query(context.Background(), "127.0.0.1", srv.port())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if st.Hostname != "Madeline Freeroam" || st.Gamemode != "Freeroam 1.0" || st.Language != "English" {
		t.Errorf("info = %q %q %q", st.Hostname, st.Gamemode, st.Language)
	}
	if st.Password || st.Players != 2 || st.MaxPlayers != 50 {
		t.Errorf("counts = %v %d/%d", st.Password, st.Players, st.MaxPlayers)
	}
	if st.Rule("version") != "omp 1.2.0" || st.Rule("missing") != "" {
		t.Errorf("rules = %+v", st.Rules)
	}
	if len(st.PlayerList) != 2 || st.PlayerList[1].Name != "Y_Less" || st.PlayerList[1].Score != -3 {
		t.Errorf("players = %+v", st.PlayerList)
	}
	if st.Ping <= 0 {
		t.Errorf("Ping = %v, want > 0", st.Ping)
	}
	if st.Address() != domain.FullIP("127.0.0.1", srv.port()) {
		t.Errorf("Address() = %q", st.Address())
	}
}

func TestQueryWithoutClientList(t *testing.T) {
	srv := startFakeServer(t, map[byte][]byte{
		OpInfo:  infoPayload(true, 150, 500, "Big", "RP", "PT"),
		OpRules: rulesPayload(),
	}, false)

	client := NewClient(200*time.Millisecond, nil, logger.Nop())
	st, err := client.Query(context.Background(), "127.0.0.1", srv.port())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if st.PlayerList != nil {
		t.Errorf("PlayerList = %+v, want nil above %d players", st.PlayerList, PlayerListLimit)
	}
	if !st.Password {
		t.Error("Password = false, want true")
	}
	if st.Ping <= 0 {
		t.Errorf("Ping = %v, want info round trip as fallback", st.Ping)
	}
}

func TestQueryFailures(t *testing.T) {
	silent := startFakeServer(t, nil, false)
	truncated := startFakeServer(t, map[byte][]byte{OpInfo: {0, 1}}, false)

	tests := []struct {
		name string
		host string
		port int
	}{
		{name: "no answer", host: "127.0.0.1", port: silent.port()},
		{name: "truncated info", host: "127.0.0.1", port: truncated.port()},
		{name: "ipv6 literal", host: "::1", port: 7777},
		{name: "empty host", host: " ", port: 7777},
		{name: "bad port", host: "127.0.0.1", port: 70000},
	}

	client := NewClient(100*time.Millisecond, nil, logger.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Query(context.Background(), tt.host, tt.port)
			if !errors.Is(err, domain.ErrUpstreamQueryFailed) {
				t.Errorf("Query() error = %v, want ErrUpstreamQueryFailed", err)
			}
		})
	}
}

type stubResolver struct {
	addrs []netip.Addr
	err   error
	host  string
}

func (r *stubResolver) LookupNetIP(_ context.Context, _ string, host string) ([]netip.Addr, error) {
	r.host = host
	return r.addrs, r.err
}

func TestQueryResolvesHostname(t *testing.T) {
	srv := startFakeServer(t, map[byte][]byte{
		OpInfo:  infoPayload(false, 0, 10, "h", "g", "l"),
		OpRules: rulesPayload(),
	}, true)
	res := &stubResolver{addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")}}

	client := NewClient(500*time.Millisecond, res, logger.Nop())
	st, err := client.Query(context.Background(), "play.example.org", srv.port())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.host != "play.example.org" {
		t.Errorf("resolver asked for %q", res.host)
	}
	if st.Host != "play.example.org" {
		t.Errorf("Host = %q, want the requested name", st.Host)
	}

	res.err = errors.New("nxdomain")
	if _, err := client.Query(context.Background(), "gone.example.org", 7777); !errors.Is(err, domain.ErrUpstreamQueryFailed) {
		t.Errorf("Query() error = %v, want ErrUpstreamQueryFailed", err)
	}
}

func TestBuildRequest(t *testing.T) {
	got := buildRequest(netip.MustParseAddrPort("203.0.113.5:7777"), OpInfo, nil)
	want := []byte{'S', 'A', 'M', 'P', 203, 0, 113, 5, 0x61, 0x1e, 'i'}
	if string(got) != string(want) {
		t.Errorf("buildRequest() = %v, want %v", got, want)
	}
}

func TestReaderWindows1252(t *testing.T) {
	r := &reader{buf: []byte{3, 'C', 0xE9, '!'}}
	s, err := r.string8()
	if err != nil {
		t.Fatalf("string8() error = %v", err)
	}
	if s != "Cé!" {
		t.Errorf("string8() = %q, want %q", s, "Cé!")
	}
	if _, err := r.uint8(); !errors.Is(err, errShortPacket) {
		t.Errorf("read past end error = %v, want errShortPacket", err)
	}
}
