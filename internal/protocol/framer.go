package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
)

// Wire header layout (all integers big-endian):
//
//	| type:uint16 | versionLen:uint8 | version | sequence:uint32 | payloadLen:uint16 | payload |
const (
	typeFieldSize       = 2
	versionLenFieldSize = 1
	sequenceFieldSize   = 4
	payloadLenFieldSize = 2
	fixedHeaderSize     = typeFieldSize + versionLenFieldSize + sequenceFieldSize + payloadLenFieldSize
)

// proxyPreamble marks the optional connection-initial line a reverse proxy
// prepends to relay the true peer address (haproxy PROXY protocol v1).
const proxyPreamble = "PROXY "

// A v1 preamble line is at most 107 bytes including the terminator.
const maxPreambleLen = 107

// Packet is one fully-framed message extracted from the byte stream.
type Packet struct {
	Type     uint16
	Version  string
	Sequence uint32
	Payload  []byte
}

// Framer incrementally parses a TCP byte stream into Packets. Bytes are
// appended with Feed as they arrive; Next consumes and returns at most one
// complete packet per call, returning nil without error while the buffer
// holds less than one full packet. A Framer is owned by a single connection
// goroutine and is not safe for concurrent use.
type Framer struct {
	buf             []byte
	preambleChecked bool

	// PeerAddr holds the logical peer address extracted from a PROXY
	// preamble, or nil for direct connections.
	PeerAddr *net.TCPAddr
}

// Feed appends freshly-read bytes to the framer's buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Buffered returns the number of bytes awaiting framing.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Next extracts the next complete packet from the buffer, consuming exactly
// its bytes. (nil, nil) means more data is needed; this is the expected
// result under partial TCP reads and is not an error.
func (f *Framer) Next() (*Packet, error) {
	if !f.preambleChecked {
		complete := f.consumePreamble()
		if !complete {
			return nil, nil
		}
	}

	if len(f.buf) < typeFieldSize+versionLenFieldSize {
		return nil, nil
	}

	packetType := binary.BigEndian.Uint16(f.buf[0:2])
	versionLen := int(f.buf[2])

	headerSize := fixedHeaderSize + versionLen
	if len(f.buf) < headerSize {
		return nil, nil
	}

	version := string(f.buf[3 : 3+versionLen])
	sequence := binary.BigEndian.Uint32(f.buf[3+versionLen : 7+versionLen])
	payloadLen := int(binary.BigEndian.Uint16(f.buf[7+versionLen : 9+versionLen]))

	if len(f.buf) < headerSize+payloadLen {
		return nil, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, f.buf[headerSize:headerSize+payloadLen])
	f.buf = f.buf[headerSize+payloadLen:]

	return &Packet{
		Type:     packetType,
		Version:  version,
		Sequence: sequence,
		Payload:  payload,
	}, nil
}

// consumePreamble scans the very first bytes of the stream for a PROXY
// preamble line, stripping it and recording the peer address if present.
// Returns false if more bytes are needed to make the determination. A
// malformed preamble is ignored rather than fatal; only the detected parts
// are consumed.
func (f *Framer) consumePreamble() bool {
	if len(f.buf) < len(proxyPreamble) {
		// Could still be a preamble prefix. Wait for more bytes unless the
		// bytes we have already rule it out.
		if len(f.buf) == 0 || bytes.HasPrefix([]byte(proxyPreamble), f.buf) {
			return false
		}
		f.preambleChecked = true
		return true
	}

	if !bytes.HasPrefix(f.buf, []byte(proxyPreamble)) {
		f.preambleChecked = true
		return true
	}

	newline := bytes.IndexByte(f.buf, '\n')
	if newline == -1 {
		if len(f.buf) >= maxPreambleLen {
			// Unterminated garbage claiming to be a preamble. Consume the
			// marker we detected and resume normal framing.
			f.buf = f.buf[len(proxyPreamble):]
			f.preambleChecked = true
			return true
		}
		return false
	}

	line := strings.TrimRight(string(f.buf[:newline]), "\r")
	f.buf = f.buf[newline+1:]
	f.preambleChecked = true

	f.PeerAddr = parsePreambleAddr(line)
	return true
}

// parsePreambleAddr extracts the source address from a preamble line of the
// form "PROXY <proto> <srcIP> <dstIP> <srcPort> <dstPort>". Returns nil if
// any expected field is missing or unparseable.
func parsePreambleAddr(line string) *net.TCPAddr {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return nil
	}

	srcIP := net.ParseIP(fields[2])
	if srcIP == nil {
		return nil
	}
	srcPort, err := strconv.Atoi(fields[4])
	if err != nil || srcPort < 0 || srcPort > 65535 {
		return nil
	}

	return &net.TCPAddr{IP: srcIP, Port: srcPort}
}

// EncodePacket frames a payload for the wire using the server's protocol
// version.
func EncodePacket(packetType uint16, sequence uint32, payload []byte) ([]byte, error) {
	return EncodePacketVersion(packetType, ClientVersion, sequence, payload)
}

// EncodePacketVersion frames a payload with an explicit version string. The
// header stores the payload length as a uint16, so payloads over 65535 bytes
// cannot be framed.
func EncodePacketVersion(packetType uint16, version string, sequence uint32, payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("payload length %d exceeds maximum of %d", len(payload), math.MaxUint16)
	}

	out := make([]byte, 0, fixedHeaderSize+len(version)+len(payload))

	var scratch [4]byte
	binary.BigEndian.PutUint16(scratch[:2], packetType)
	out = append(out, scratch[:2]...)

	out = append(out, byte(len(version)))
	out = append(out, version...)

	binary.BigEndian.PutUint32(scratch[:4], sequence)
	out = append(out, scratch[:4]...)

	binary.BigEndian.PutUint16(scratch[:2], uint16(len(payload)))
	out = append(out, scratch[:2]...)

	return append(out, payload...), nil
}
