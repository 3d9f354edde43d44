// Package dns provides DNS protocol parsing, encoding, and packet manipulation.
//
// Standards Compliance:
//
// This package implements DNS protocol features from the following RFCs:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core DNS protocol)
//   - RFC 1034: Domain Names - Concepts and Facilities (DNS concepts)
//   - RFC 3596: DNS Extensions to Support IPv6 (AAAA records)
//   - RFC 6891: Extension Mechanisms for DNS (EDNS, OPT records)
//
// Type-Oriented Design:
//
// Each DNS record type is represented by an explicit type (IPRecord, NameRecord,
// MXRecord, TXTRecord, OpaqueRecord) rather than a generic struct. This ensures
// type safety and makes DNS semantics clear; unknown record types still
// round-trip losslessly as opaque RDATA.
//
// Error Handling:
//
// All errors are sentinel values wrapped with context using
// fmt.Errorf("...: %w", err). This preserves error chains (errors.Is) while
// adding operational context.
package dns

import "errors"

var (
	// ErrInvalidHeaderSize is returned when fewer than 12 bytes are
	// available for the fixed DNS header.
	ErrInvalidHeaderSize = errors.New("dns: invalid header size")

	// ErrInvalidHeaderOpcode is returned when the header OPCODE is not one
	// of Query(0), IQuery(1), Status(2).
	ErrInvalidHeaderOpcode = errors.New("dns: invalid header opcode")

	// ErrInvalidHeaderRcode is returned when the header RCODE is not a
	// recognised response code.
	ErrInvalidHeaderRcode = errors.New("dns: invalid header rcode")

	// ErrInvalidQuestionType is returned when a question's QTYPE is not a
	// known RR type or query-only type (AXFR, MAILB, MAILA, ALL).
	ErrInvalidQuestionType = errors.New("dns: invalid question type")

	// ErrInvalidQuestionClass is returned when a question's QCLASS is not
	// a known class.
	ErrInvalidQuestionClass = errors.New("dns: invalid question class")

	// ErrInvalidResourceRecordType is returned when a resource record's
	// TYPE is not recognised.
	ErrInvalidResourceRecordType = errors.New("dns: invalid resource record type")

	// ErrInvalidResourceRecordClass is returned when a resource record's
	// CLASS is not recognised.
	ErrInvalidResourceRecordClass = errors.New("dns: invalid resource record class")

	// ErrInvalidName is returned for a malformed domain name: a label
	// exceeding 63 bytes, an encoded name exceeding 255 bytes, a
	// compression pointer that does not point strictly backward, a
	// pointer past the end of the message, or a pointer chain exceeding
	// the maximum nesting depth.
	ErrInvalidName = errors.New("dns: invalid name")

	// ErrInvalidOptRecord is returned for a malformed OPT record: a
	// non-root owner name, or an option whose declared length runs past
	// the record's RDATA.
	ErrInvalidOptRecord = errors.New("dns: invalid OPT record")

	// ErrMultipleOptRecords is returned when a message's additional
	// section carries more than one OPT pseudo-record.
	ErrMultipleOptRecords = errors.New("dns: multiple OPT records")

	// ErrResourceDataLengthMismatch is returned when the number of bytes
	// consumed decoding RDATA does not equal the record's RDLENGTH.
	ErrResourceDataLengthMismatch = errors.New("dns: resource data length mismatch")

	// ErrUnexpectedEOF is returned when the message buffer ends before a
	// fixed-size field can be read in full.
	ErrUnexpectedEOF = errors.New("dns: unexpected end of message")

	// ErrMessageTooLarge is returned when an incoming message exceeds the
	// configured maximum size bound.
	ErrMessageTooLarge = errors.New("dns: message too large")

	// ErrTooManyRecords is returned when a section count exceeds the
	// configured maximum number of entries this server accepts.
	ErrTooManyRecords = errors.New("dns: too many records")
)
