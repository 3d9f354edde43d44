package dns

import "fmt"

// Packet represents a complete DNS message (RFC 1035 Section 4).
//
// A DNS packet consists of a header and four sections:
//   - Questions: What the client is asking
//   - Answers: Resource records answering the question
//   - Authorities: Nameserver records pointing to authorities
//   - Additionals: Extra records (e.g., glue records)
//
// Opt carries the EDNS(0) pseudo-record (RFC 6891), if present. It is
// kept apart from Additionals rather than stored as one more Record:
// OPT repurposes the CLASS and TTL fields for unrelated data (UDP
// payload size, extended RCODE, version, flags) and a message may carry
// at most one, so giving it its own field makes both invariants
// structural instead of something every caller must remember to check.
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
	Opt         *OPTRecord
}

// Marshal serializes the packet to DNS wire format (big-endian).
func (p Packet) Marshal() ([]byte, error) {
	arCount := len(p.Additionals)
	if p.Opt != nil {
		arCount++
	}
	h := Header{
		ID:      p.Header.ID,
		Flags:   p.Header.Flags,
		QDCount: uint16(len(p.Questions)),
		ANCount: uint16(len(p.Answers)),
		NSCount: uint16(len(p.Authorities)),
		ARCount: uint16(arCount),
	}

	hb, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	// Estimate capacity: header(12) + question(~50) + records(~100 each)
	estimatedSize := HeaderSize + len(p.Questions)*50 + (len(p.Answers)+len(p.Authorities)+arCount)*100
	out := make([]byte, 0, estimatedSize)
	out = append(out, hb...)
	for _, q := range p.Questions {
		qb, err := q.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, qb...)
	}
	for _, rr := range p.Answers {
		b, err := MarshalRecord(rr)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	for _, rr := range p.Authorities {
		b, err := MarshalRecord(rr)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	for _, rr := range p.Additionals {
		b, err := MarshalRecord(rr)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	if p.Opt != nil {
		out = append(out, p.Opt.Marshal()...)
	}
	return out, nil
}

// ParsePacket decodes a complete DNS message. At most one OPT
// pseudo-record is accepted in the additional section; a second one is
// a protocol violation (RFC 6891 Section 6.1.1) and parsing fails with
// ErrMultipleOptRecords rather than silently keeping the last one seen.
func ParsePacket(msg []byte) (Packet, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return Packet{}, err
	}

	p := Packet{Header: h}

	// Cap initial allocation to avoid DoS with large counts in header
	// but small actual packet size.
	limitCount := func(count uint16, limit int) int {
		if int(count) > limit {
			return limit
		}
		return int(count)
	}

	p.Questions = make([]Question, 0, limitCount(h.QDCount, MaxQuestions))
	for range h.QDCount {
		q, err := ParseQuestion(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Questions = append(p.Questions, q)
	}
	p.Answers = make([]Record, 0, limitCount(h.ANCount, MaxRRPerSection))
	for range h.ANCount {
		rr, err := ParseRecord(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Answers = append(p.Answers, rr)
	}
	p.Authorities = make([]Record, 0, limitCount(h.NSCount, MaxRRPerSection))
	for range h.NSCount {
		rr, err := ParseRecord(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Authorities = append(p.Authorities, rr)
	}
	p.Additionals = make([]Record, 0, limitCount(h.ARCount, MaxRRPerSection))
	for range h.ARCount {
		f, err := parseRRFixed(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		if f.typ == TypeOPT {
			if p.Opt != nil {
				return Packet{}, fmt.Errorf("message: %w", ErrMultipleOptRecords)
			}
			opt, err := ParseOPTRecord(msg, &off, f.rdlen, f.name, f.class, f.ttl)
			if err != nil {
				return Packet{}, err
			}
			p.Opt = opt
			continue
		}
		rr, err := parseRData(msg, &off, f)
		if err != nil {
			return Packet{}, err
		}
		p.Additionals = append(p.Additionals, rr)
	}
	return p, nil
}
