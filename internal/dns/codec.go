package dns

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NormalizeName returns a lowercase DNS name without trailing dots.
// This is useful for case-insensitive DNS name comparisons per RFC 4343.
// DNS domain names are case-insensitive per RFC 1035 Section 3.1.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// EncodeName encodes a domain name to DNS wire format (RFC 1035 Section 3.1).
//
// DNS names are encoded as a sequence of labels, where each label is:
//   - 1 byte: length (0-63)
//   - N bytes: label characters
//
// The name is terminated by a zero-length label (single 0x00 byte).
//
// Example: "www.example.com" encodes as:
//
//	[3]www[7]example[3]com[0]
//	0x03 'w' 'w' 'w' 0x07 'e' 'x' 'a' 'm' 'p' 'l' 'e' 0x03 'c' 'o' 'm' 0x00
//
// This implementation does not perform message compression on output
// (compression on output is optional per RFC 1035 4.1.4); callers
// accumulate uncompressed names and the message stays well within
// practical size limits. Decoding always supports compressed input.
func EncodeName(domain string) ([]byte, error) {
	domain = trimDot(domain)
	if domain == "" {
		return []byte{0}, nil // Root domain
	}

	out := make([]byte, 0, len(domain)+2)
	labelStart := 0
	labelCount := 0
	for i := 0; i <= len(domain); i++ {
		if i == len(domain) || domain[i] == '.' {
			if i == labelStart {
				return nil, fmt.Errorf("name %q: empty label: %w", domain, ErrInvalidName)
			}
			label := domain[labelStart:i]

			for j := range len(label) {
				if label[j] > 0x7F {
					return nil, fmt.Errorf("name %q: non-ASCII label: %w", domain, ErrInvalidName)
				}
			}

			if len(label) > 63 {
				return nil, fmt.Errorf("name %q: label %q exceeds 63 bytes: %w", domain, label, ErrInvalidName)
			}

			out = append(out, byte(len(label)))
			out = append(out, label...)
			labelStart = i + 1
			labelCount++
			if labelCount > maxNameLabels {
				return nil, fmt.Errorf("name %q: exceeds %d labels: %w", domain, maxNameLabels, ErrInvalidName)
			}
		}
	}
	out = append(out, 0) // Terminating zero-length label

	if len(out) > maxEncodedNameLength {
		return nil, fmt.Errorf("name %q: encoded length %d exceeds %d: %w", domain, len(out), maxEncodedNameLength, ErrInvalidName)
	}
	return out, nil
}

// maxEncodedNameLength is the maximum wire-format length of a domain name
// (RFC 1035 Section 3.1).
const maxEncodedNameLength = 255

// maxNameLabels bounds the number of labels in a single name. RFC 1035
// does not give a hard label count, but since each label consumes at
// least two bytes and the name is capped at 255 bytes, no valid name has
// more than this many labels; bounding it early rejects pathological
// input before it is joined into a string.
const maxNameLabels = 128

// maxCompressionDepth bounds the number of pointer indirections followed
// while decoding a single name, independent of the strict backward-only
// rule, as a defense-in-depth limit on decode work.
const maxCompressionDepth = maxNameLabels

// DecodeName decodes a possibly-compressed DNS name from wire format
// (RFC 1035 Section 4.1.4).
//
// Compression pointers (top two bits of the length byte set) encode a
// 14-bit offset from the start of the message. Per this server's
// strictness policy, a pointer must target an offset strictly less than
// the offset at which the pointer itself begins; this alone makes
// pointer loops structurally impossible; depth and per-message iteration
// bounds below that are conservative limits on decode work.
//
// This function reads from msg starting at *off, advancing *off past the
// encoded name (including any compression pointer bytes). Returns an
// ASCII, dot-separated name without a trailing dot.
func DecodeName(msg []byte, off *int) (string, error) {
	name, err := decodeName(msg, off, 0)
	if err != nil {
		return "", err
	}
	return name, nil
}

// decodeName is the recursive implementation of DecodeName. depth counts
// pointer indirections followed so far.
func decodeName(msg []byte, off *int, depth int) (string, error) {
	if depth > maxCompressionDepth {
		return "", fmt.Errorf("name: %d pointer indirections: %w", depth, ErrInvalidName)
	}
	if *off < 0 || *off >= len(msg) {
		return "", fmt.Errorf("name: %w", ErrUnexpectedEOF)
	}

	labels := make([]string, 0, 6)
	labelCount := 0
	for {
		if *off >= len(msg) {
			return "", fmt.Errorf("name: %w", ErrUnexpectedEOF)
		}
		pointerStart := *off
		labelLen := msg[*off]
		*off++

		if labelLen == 0 {
			break
		}

		if isCompressionPointer(labelLen) {
			rest, err := followCompressionPointer(msg, off, labelLen, pointerStart, depth)
			if err != nil {
				return "", err
			}
			if rest != "" {
				labels = append(labels, rest)
			}
			break
		}

		if hasReservedBits(labelLen) {
			return "", fmt.Errorf("name: reserved label length bits: %w", ErrInvalidName)
		}

		label, err := readLabel(msg, off, int(labelLen))
		if err != nil {
			return "", err
		}
		labels = append(labels, label)
		labelCount++
		if labelCount > maxNameLabels {
			return "", fmt.Errorf("name: exceeds %d labels: %w", maxNameLabels, ErrInvalidName)
		}
	}

	return joinLabels(labels), nil
}

// isCompressionPointer checks if the label length byte indicates a compression pointer.
// Compression pointers have the two high bits set (11xxxxxx = 0xC0 mask).
func isCompressionPointer(b byte) bool {
	return (b & 0xC0) == 0xC0
}

// hasReservedBits checks if the label uses reserved encoding (01xxxxxx or 10xxxxxx).
// These patterns are reserved for future use per RFC 1035.
func hasReservedBits(b byte) bool {
	return (b & 0xC0) != 0
}

// followCompressionPointer follows a DNS compression pointer and returns
// the name at that offset. pointerStart is the offset of the length byte
// that introduced the pointer (before either pointer byte was read); the
// target must be strictly less than pointerStart, enforcing that a
// pointer only ever references data already consumed earlier in the
// message.
func followCompressionPointer(
	msg []byte,
	off *int,
	firstByte byte,
	pointerStart int,
	depth int,
) (string, error) {
	if *off >= len(msg) {
		return "", fmt.Errorf("name: pointer: %w", ErrUnexpectedEOF)
	}

	ptr := int(binary.BigEndian.Uint16([]byte{firstByte & 0x3F, msg[*off]}))
	*off++

	if ptr >= len(msg) {
		return "", fmt.Errorf("name: pointer offset %d past end of message: %w", ptr, ErrInvalidName)
	}
	if ptr >= pointerStart {
		return "", fmt.Errorf("name: pointer offset %d does not point strictly backward from %d: %w", ptr, pointerStart, ErrInvalidName)
	}

	ptrOff := ptr
	return decodeName(msg, &ptrOff, depth+1)
}

// readLabel reads a single DNS label of the given length.
func readLabel(msg []byte, off *int, length int) (string, error) {
	if *off+length > len(msg) {
		return "", fmt.Errorf("name: label: %w", ErrUnexpectedEOF)
	}
	label := msg[*off : *off+length]
	*off += length

	for _, b := range label {
		if b > 0x7F {
			return "", fmt.Errorf("name: non-ASCII label: %w", ErrInvalidName)
		}
	}
	return string(label), nil
}

// trimDot removes all trailing dots from a string.
func trimDot(s string) string {
	for len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// joinLabels concatenates DNS labels with dots.
// Uses strings.Builder with size pre-allocation for efficiency.
func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	if len(labels) == 1 {
		return labels[0]
	}
	totalSize := len(labels) - 1 // dots
	for _, label := range labels {
		totalSize += len(label)
	}
	var b strings.Builder
	b.Grow(totalSize)
	b.WriteString(labels[0])
	for i := 1; i < len(labels); i++ {
		b.WriteByte('.')
		b.WriteString(labels[i])
	}
	return b.String()
}
