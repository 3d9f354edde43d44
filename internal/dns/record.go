package dns

import (
	"encoding/binary"
	"fmt"
)

// RRHeader is the portion of a resource record shared across every
// concrete record type: owner name, class and TTL. TYPE and RDLENGTH are
// derived from the concrete Record's Type() and marshaled RDATA.
type RRHeader struct {
	Name  string
	Class RecordClass
	TTL   uint32
}

// NewRRHeader builds an RRHeader for a record owned by name, in the
// given class, with a TTL expressed in seconds.
func NewRRHeader(name string, class RecordClass, ttl uint32) RRHeader {
	return RRHeader{Name: name, Class: class, TTL: ttl}
}

// Record is one resource record carried in a message's answer,
// authority, or additional section (RFC 1035 Section 4.1.3). Each record
// type this server understands is an explicit Go type — IPRecord,
// NameRecord, MXRecord, TXTRecord — rather than a single generic struct;
// anything else round-trips through OpaqueRecord, which preserves its
// raw RDATA bytes unchanged.
type Record interface {
	// Type returns the RR TYPE value to encode on the wire.
	Type() RecordType
	// Header returns the shared owner/class/TTL fields.
	Header() RRHeader
	// SetHeader replaces the shared owner/class/TTL fields. Used by the
	// parser after the type-specific RDATA has been decoded.
	SetHeader(RRHeader)
	// MarshalRData encodes the type-specific RDATA.
	MarshalRData() ([]byte, error)
}

// MarshalRecord serializes r to wire format: NAME, TYPE, CLASS, TTL,
// RDLENGTH, RDATA.
func MarshalRecord(r Record) ([]byte, error) {
	h := r.Header()
	name, err := EncodeName(h.Name)
	if err != nil {
		return nil, err
	}
	rdata, err := r.MarshalRData()
	if err != nil {
		return nil, err
	}
	if len(rdata) > 0xFFFF {
		return nil, fmt.Errorf("record %q: rdata length %d exceeds uint16: %w", h.Name, len(rdata), ErrInvalidResourceRecordType)
	}

	out := make([]byte, 0, len(name)+10+len(rdata))
	out = append(out, name...)
	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], uint16(r.Type()))
	binary.BigEndian.PutUint16(fixed[2:4], uint16(h.Class))
	binary.BigEndian.PutUint32(fixed[4:8], h.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rdata)))
	out = append(out, fixed...)
	out = append(out, rdata...)
	return out, nil
}

// rrFixed holds the decoded owner name and fixed TYPE/CLASS/TTL/RDLENGTH
// fields of a resource record, before RDATA has been interpreted. Message
// parsing needs this split so the additional section can peek at TYPE
// and divert EDNS OPT pseudo-records (RFC 6891 Section 6.1.2) to their
// own parser before deciding how to read the rest of the record.
type rrFixed struct {
	name  string
	typ   RecordType
	class uint16
	ttl   uint32
	rdlen int
}

// parseRRFixed decodes the owner name and the ten fixed bytes
// (TYPE, CLASS, TTL, RDLENGTH) of a resource record, advancing *off to
// the start of RDATA. It does not interpret RDATA.
func parseRRFixed(msg []byte, off *int) (rrFixed, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return rrFixed{}, err
	}
	if *off+10 > len(msg) {
		return rrFixed{}, fmt.Errorf("record %q: %w", name, ErrUnexpectedEOF)
	}
	rt := RecordType(binary.BigEndian.Uint16(msg[*off : *off+2]))
	class := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := int(binary.BigEndian.Uint16(msg[*off+8 : *off+10]))
	*off += 10
	if *off+rdlen > len(msg) {
		return rrFixed{}, fmt.Errorf("record %q: %w", name, ErrUnexpectedEOF)
	}
	return rrFixed{name: name, typ: rt, class: class, ttl: ttl, rdlen: rdlen}, nil
}

// parseRData dispatches RDATA parsing for f.typ and attaches the shared
// header fields to the resulting Record. Unknown TYPE values decode as
// OpaqueRecord so the record round-trips even though this package does
// not understand its RDATA shape.
func parseRData(msg []byte, off *int, f rrFixed) (Record, error) {
	start := *off
	var rec Record
	var err error
	switch f.typ {
	case TypeA, TypeAAAA:
		rec, err = ParseIPRData(msg, off, f.rdlen)
	case TypeCNAME, TypeNS, TypePTR:
		rec, err = ParseNameRData(msg, off, start, f.rdlen, f.typ)
	case TypeMX:
		rec, err = ParseMXRData(msg, off, start, f.rdlen)
	case TypeTXT:
		rec, err = ParseTXTRData(msg, off, f.rdlen)
	default:
		rec, err = ParseOpaqueRData(msg, off, f.rdlen, f.typ)
	}
	if err != nil {
		return nil, fmt.Errorf("record %q type %d: %w", f.name, f.typ, err)
	}
	if *off-start != f.rdlen {
		return nil, fmt.Errorf("record %q: %w", f.name, ErrResourceDataLengthMismatch)
	}
	rec.SetHeader(RRHeader{Name: f.name, Class: RecordClass(f.class), TTL: f.ttl})
	return rec, nil
}

// ParseRecord parses one resource record at *off (RFC 1035 Section
// 4.1.3), advancing *off past it.
func ParseRecord(msg []byte, off *int) (Record, error) {
	f, err := parseRRFixed(msg, off)
	if err != nil {
		return nil, err
	}
	return parseRData(msg, off, f)
}
