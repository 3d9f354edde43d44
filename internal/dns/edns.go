package dns

import (
	"encoding/binary"
	"fmt"

	"github.com/jroosing/hydradns/internal/helpers"
)

// EDNS (Extension Mechanisms for DNS) constants per RFC 6891.
const (
	DefaultUDPPayloadSize     = 512  // Traditional DNS UDP limit (RFC 1035)
	EDNSDefaultUDPPayloadSize = 1232 // Safe EDNS size avoiding fragmentation
	EDNSMaxUDPPayloadSize     = 4096 // Maximum practical EDNS UDP size
	EDNSMinUDPPayloadSize     = 512  // Minimum EDNS UDP payload size
)

// EDNSOption represents an EDNS option in the OPT record's RDATA
// (RFC 6891 Section 6.1.2). Option codes this server does not recognise
// still round-trip: their raw data is preserved unchanged.
type EDNSOption struct {
	Code uint16 // Option code
	Data []byte // Option data
}

const ednsOptionHeaderLen = 4

// Marshal serializes an EDNS option to wire format.
func (o EDNSOption) Marshal() []byte {
	b := make([]byte, 4+len(o.Data))
	binary.BigEndian.PutUint16(b[0:2], o.Code)
	binary.BigEndian.PutUint16(b[2:4], helpers.ClampIntToUint16(len(o.Data)))
	copy(b[4:], o.Data)
	return b
}

// ParseEDNSOptions extracts EDNS options from raw RDATA. A truncated
// trailing option (declared length running past the buffer) stops
// parsing and returns an error rather than silently dropping data.
func ParseEDNSOptions(rdata []byte) ([]EDNSOption, error) {
	opts := make([]EDNSOption, 0, 2)
	for i := 0; i < len(rdata); {
		if len(rdata)-i < ednsOptionHeaderLen {
			return nil, fmt.Errorf("OPT: trailing option header truncated: %w", ErrInvalidOptRecord)
		}
		code := binary.BigEndian.Uint16(rdata[i : i+2])
		ln := int(binary.BigEndian.Uint16(rdata[i+2 : i+4]))
		i += ednsOptionHeaderLen

		if i+ln > len(rdata) {
			return nil, fmt.Errorf("OPT: option %d length %d runs past RDATA: %w", code, ln, ErrInvalidOptRecord)
		}
		data := make([]byte, ln)
		copy(data, rdata[i:i+ln])
		opts = append(opts, EDNSOption{Code: code, Data: data})
		i += ln
	}
	return opts, nil
}

// MarshalEDNSOptions serializes EDNS options to RDATA.
func MarshalEDNSOptions(opts []EDNSOption) []byte {
	if len(opts) == 0 {
		return nil
	}
	size := 0
	for _, o := range opts {
		size += ednsOptionHeaderLen + len(o.Data)
	}
	out := make([]byte, 0, size)
	for _, o := range opts {
		out = append(out, o.Marshal()...)
	}
	return out
}

// OPTRecord represents an EDNS OPT pseudo-record (RFC 6891).
//
// The OPT record uses a non-standard encoding:
//   - NAME: Must be root (0x00)
//   - TYPE: 41 (OPT)
//   - CLASS: Sender's UDP payload size (not a class!)
//   - TTL: Extended RCODE, version, and flags (packed into 32 bits)
//   - RDATA: Zero or more EDNS options
//
// TTL field layout (32 bits):
//
//	+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+
//	|         EXTENDED-RCODE        |            VERSION            |
//	+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+
//	| DO|                    Z (reserved)                           |
//	+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+---+
//
// Bits 31-24: Extended RCODE (upper 8 bits)
// Bits 23-16: EDNS version
// Bit 15: DO (DNSSEC OK) flag
// Bits 14-0: Reserved (must be zero).
type OPTRecord struct {
	UDPPayloadSize uint16       // Sender's maximum UDP payload size
	ExtendedRCode  uint8        // Upper 8 bits of RCODE
	Version        uint8        // EDNS version (must be 0)
	DNSSECOk       bool         // DO flag: client supports DNSSEC
	Options        []EDNSOption // EDNS options
}

// CreateOPT creates an OPT record advertising the given UDP payload size.
func CreateOPT(udpPayloadSize int) OPTRecord {
	sz := helpers.ClampInt(udpPayloadSize, EDNSMinUDPPayloadSize, 65535)
	return OPTRecord{UDPPayloadSize: helpers.ClampIntToUint16(sz)}
}

// Marshal serializes the OPT record to DNS wire format, including the
// fixed root-name owner byte.
func (o OPTRecord) Marshal() []byte {
	ttl := packOPTTTL(o.ExtendedRCode, o.Version, o.DNSSECOk)
	rdata := MarshalEDNSOptions(o.Options)

	b := make([]byte, 0, 11+len(rdata))
	b = append(b, 0) // Root name (single zero byte)

	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], uint16(TypeOPT))
	binary.BigEndian.PutUint16(fixed[2:4], o.UDPPayloadSize) // CLASS field = UDP size
	binary.BigEndian.PutUint32(fixed[4:8], ttl)
	binary.BigEndian.PutUint16(fixed[8:10], helpers.ClampIntToUint16(len(rdata)))
	b = append(b, fixed...)
	b = append(b, rdata...)
	return b
}

// packOPTTTL constructs the 32-bit TTL field for an OPT record.
func packOPTTTL(extRCode, version uint8, dnssecOk bool) uint32 {
	ttl := uint32(extRCode)<<24 | uint32(version)<<16
	if dnssecOk {
		ttl |= 1 << 15 // Set DO flag (bit 15)
	}
	return ttl
}

// ParseOPTRecord parses an OPT pseudo-record's fixed fields and RDATA.
// name is the already-decoded owner name, which per RFC 6891 Section
// 6.1.2 must be root (the empty name); class carries the advertised UDP
// payload size and ttl carries the packed extended-RCODE/version/DO
// fields, per the non-standard OPT field reuse documented on OPTRecord.
func ParseOPTRecord(msg []byte, off *int, rdlen int, name string, class uint16, ttl uint32) (*OPTRecord, error) {
	if name != "" {
		return nil, fmt.Errorf("OPT: owner name %q is not root: %w", name, ErrInvalidOptRecord)
	}
	if *off+rdlen > len(msg) {
		return nil, fmt.Errorf("OPT: %w", ErrUnexpectedEOF)
	}
	rdata := msg[*off : *off+rdlen]
	*off += rdlen

	opts, err := ParseEDNSOptions(rdata)
	if err != nil {
		return nil, err
	}
	return &OPTRecord{
		UDPPayloadSize: class,
		ExtendedRCode:  helpers.ClampUint32ToUint8((ttl >> 24) & 0xFF),
		Version:        helpers.ClampUint32ToUint8((ttl >> 16) & 0xFF),
		DNSSECOk:       ((ttl >> 15) & 0x1) == 1,
		Options:        opts,
	}, nil
}

// ClientMaxUDPSize determines the maximum UDP response size for a
// client: the EDNS-advertised payload size if the request carried an
// OPT record, or DefaultUDPPayloadSize (512) otherwise. An advertised
// size below 512 is raised to 512, matching resolver practice of never
// shrinking the classic floor.
func ClientMaxUDPSize(req Packet) int {
	if req.Opt == nil {
		return DefaultUDPPayloadSize
	}
	if req.Opt.UDPPayloadSize < DefaultUDPPayloadSize {
		return DefaultUDPPayloadSize
	}
	return int(req.Opt.UDPPayloadSize)
}

// IsTruncated checks if a DNS response has the TC (Truncation) flag set.
func IsTruncated(responseBytes []byte) bool {
	if len(responseBytes) < 4 {
		return false
	}
	flags := binary.BigEndian.Uint16(responseBytes[2:4])
	return (flags & TCFlag) != 0
}

// AddOPT attaches an OPT record advertising udpSize to req if it does
// not already carry one. Used when forwarding a query upstream so the
// forwarder's own EDNS capabilities are advertised even when the
// original client query was plain DNS.
func AddOPT(req *Packet, udpSize int) {
	if req.Opt != nil {
		return
	}
	opt := CreateOPT(udpSize)
	req.Opt = &opt
}
