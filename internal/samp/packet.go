package samp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/text/encoding/charmap"
)

// Query opcodes.
const (
	OpInfo    byte = 'i'
	OpRules   byte = 'r'
	OpClients byte = 'c'
	OpPing    byte = 'p'
)

const (
	magic      = "SAMP"
	headerSize = len(magic) + 4 + 2 + 1
)

var errShortPacket = errors.New("short packet")

// buildRequest encodes a query for addr. extra is appended after the
// header (the ping challenge).
func buildRequest(addr netip.AddrPort, op byte, extra []byte) []byte {
	ip := addr.Addr().As4()

	buf := make([]byte, 0, headerSize+len(extra))
	buf = append(buf, magic...)
	buf = append(buf, ip[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, addr.Port())
	buf = append(buf, op)
	return append(buf, extra...)
}

// reader decodes little-endian fields from a response payload.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", errShortPacket, n, r.off, len(r.buf))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

// string8 reads a string prefixed by a one byte length.
func (r *reader) string8() (string, error) {
	n, err := r.uint8()
	if err != nil {
		return "", err
	}
	return r.text(int(n))
}

// string32 reads a string prefixed by a four byte length.
func (r *reader) string32() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if int64(n) > int64(len(r.buf)) {
		return "", fmt.Errorf("%w: string length %d exceeds packet", errShortPacket, n)
	}
	return r.text(int(n))
}

// text decodes n bytes as Windows-1252, the encoding game servers use.
func (r *reader) text(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode string: %w", err)
	}
	return string(s), nil
}

func parseInfo(payload []byte, st *ServerStatus) error {
	r := &reader{buf: payload}

	password, err := r.uint8()
	if err != nil {
		return err
	}
	players, err := r.uint16()
	if err != nil {
		return err
	}
	maxPlayers, err := r.uint16()
	if err != nil {
		return err
	}
	if st.Hostname, err = r.string32(); err != nil {
		return err
	}
	if st.Gamemode, err = r.string32(); err != nil {
		return err
	}
	if st.Language, err = r.string32(); err != nil {
		return err
	}

	st.Password = password != 0
	st.Players = int(players)
	st.MaxPlayers = int(maxPlayers)
	return nil
}

func parseRules(payload []byte) ([]Rule, error) {
	r := &reader{buf: payload}

	count, err := r.uint16()
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, count)
	for range count {
		name, err := r.string8()
		if err != nil {
			return nil, err
		}
		value, err := r.string8()
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Name: name, Value: value})
	}
	return rules, nil
}

func parseClients(payload []byte) ([]Player, error) {
	r := &reader{buf: payload}

	count, err := r.uint16()
	if err != nil {
		return nil, err
	}
	players := make([]Player, 0, count)
	for range count {
		name, err := r.string8()
		if err != nil {
			return nil, err
		}
		score, err := r.int32()
		if err != nil {
			return nil, err
		}
		players = append(players, Player{Name: name, Score: int(score)})
	}
	return players, nil
}
