package wire

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Rdata is the decoded payload of a resource record. Exactly one of the
// typed fields is meaningful, selected by the owning ResourceRecord's
// Type; Unknown carries the type's opaque bytes for round-tripping types
// this codec does not otherwise understand.
type Rdata struct {
	A       [4]byte
	AAAA    [8]uint16
	Name    string // CNAME, PTR
	SRV     SRVData
	TXT     [][]byte
	NSEC    NSECData
	Unknown []byte
}

// SRVData is the decoded payload of an SRV record (RFC 2782).
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// NSECData is the decoded payload of an NSEC record, reduced to the
// fields mDNS actually uses: the next name in the (here, meaningless)
// canonical ordering, and the set of types present at this name.
type NSECData struct {
	NextName string
	Types    []TypeCode
}

// EncodeRdata appends the wire encoding of rdata (interpreted according to
// typ) to buf and returns the extended buffer along with the number of
// bytes appended (the record's RDLENGTH). Name-bearing rdata participates
// in compression via c, using len(buf) at the point rdata begins as its
// absolute offset.
func EncodeRdata(buf []byte, c *Compress, typ TypeCode, rdata Rdata) ([]byte, int, error) {
	start := len(buf)

	switch typ {
	case TypeA:
		buf = append(buf, rdata.A[:]...)

	case TypeAAAA:
		for _, group := range rdata.AAAA {
			buf = append(buf, byte(group>>8), byte(group))
		}

	case TypeCNAME, TypePTR:
		var err error
		buf, err = c.EncodeName(buf, rdata.Name)
		if err != nil {
			return nil, 0, newWireError("encodeRdata", start, err)
		}

	case TypeSRV:
		buf = binary.BigEndian.AppendUint16(buf, rdata.SRV.Priority)
		buf = binary.BigEndian.AppendUint16(buf, rdata.SRV.Weight)
		buf = binary.BigEndian.AppendUint16(buf, rdata.SRV.Port)
		var err error
		buf, err = c.EncodeName(buf, rdata.SRV.Target)
		if err != nil {
			return nil, 0, newWireError("encodeRdata", start, err)
		}

	case TypeTXT:
		if len(rdata.TXT) == 0 {
			buf = append(buf, 0x00)
			break
		}
		for _, entry := range rdata.TXT {
			if len(entry) > 255 {
				return nil, 0, newWireError("encodeRdata", start, fmt.Errorf("TXT entry too long: %d bytes", len(entry)))
			}
			buf = append(buf, byte(len(entry)))
			buf = append(buf, entry...)
		}

	case TypeNSEC:
		var err error
		buf, err = c.EncodeName(buf, rdata.NSEC.NextName)
		if err != nil {
			return nil, 0, newWireError("encodeRdata", start, err)
		}
		buf = encodeNSECBitmap(buf, rdata.NSEC.Types)

	default:
		buf = append(buf, rdata.Unknown...)
	}

	return buf, len(buf) - start, nil
}

// DecodeRdata decodes rdlength bytes of rdata starting at offset off
// within msg, interpreting them according to typ.
func DecodeRdata(msg []byte, off, rdlength int, typ TypeCode) (Rdata, error) {
	end := off + rdlength
	if end > len(msg) {
		return Rdata{}, newWireError("decodeRdata", off, ErrInsufficientData)
	}
	window := msg[off:end]

	switch typ {
	case TypeA:
		if len(window) != 4 {
			return Rdata{}, newWireError("decodeRdata", off, fmt.Errorf("A record must be 4 bytes, got %d", len(window)))
		}
		var rd Rdata
		copy(rd.A[:], window)
		return rd, nil

	case TypeAAAA:
		if len(window) != 16 {
			return Rdata{}, newWireError("decodeRdata", off, fmt.Errorf("AAAA record must be 16 bytes, got %d", len(window)))
		}
		var rd Rdata
		for i := 0; i < 8; i++ {
			rd.AAAA[i] = binary.BigEndian.Uint16(window[i*2:])
		}
		return rd, nil

	case TypeCNAME, TypePTR:
		name, _, err := DecodeName(msg, off)
		if err != nil {
			return Rdata{}, err
		}
		return Rdata{Name: name}, nil

	case TypeSRV:
		if len(window) < 6 {
			return Rdata{}, newWireError("decodeRdata", off, ErrInsufficientData)
		}
		target, _, err := DecodeName(msg, off+6)
		if err != nil {
			return Rdata{}, err
		}
		return Rdata{SRV: SRVData{
			Priority: binary.BigEndian.Uint16(window[0:2]),
			Weight:   binary.BigEndian.Uint16(window[2:4]),
			Port:     binary.BigEndian.Uint16(window[4:6]),
			Target:   target,
		}}, nil

	case TypeTXT:
		var entries [][]byte
		i := 0
		for i < len(window) {
			n := int(window[i])
			i++
			if i+n > len(window) {
				return Rdata{}, newWireError("decodeRdata", off+i, ErrInsufficientData)
			}
			entry := make([]byte, n)
			copy(entry, window[i:i+n])
			entries = append(entries, entry)
			i += n
		}
		return Rdata{TXT: entries}, nil

	case TypeNSEC:
		nextName, nameEnd, err := DecodeName(msg, off)
		if err != nil {
			return Rdata{}, err
		}
		types, err := decodeNSECBitmap(msg, nameEnd, end)
		if err != nil {
			return Rdata{}, err
		}
		return Rdata{NSEC: NSECData{NextName: nextName, Types: types}}, nil

	default:
		raw := make([]byte, len(window))
		copy(raw, window)
		return Rdata{Unknown: raw}, nil
	}
}

// encodeNSECBitmap appends the RFC 4034 §4.1.2 window-block encoding of
// types to buf. Types are grouped by window (type div 256); each window's
// bitmap is truncated to ceil((max_in_window+1)/8) bytes.
func encodeNSECBitmap(buf []byte, types []TypeCode) []byte {
	byWindow := make(map[int][]int)
	for _, t := range types {
		v := int(t)
		byWindow[v/256] = append(byWindow[v/256], v%256)
	}

	windows := make([]int, 0, len(byWindow))
	for w := range byWindow {
		windows = append(windows, w)
	}
	sort.Ints(windows)

	for _, w := range windows {
		bits := byWindow[w]
		maxBit := 0
		for _, b := range bits {
			if b > maxBit {
				maxBit = b
			}
		}
		bitmapLen := maxBit/8 + 1
		bitmap := make([]byte, bitmapLen)
		for _, b := range bits {
			bitmap[b/8] |= 1 << (7 - uint(b%8))
		}
		buf = append(buf, byte(w), byte(bitmapLen))
		buf = append(buf, bitmap...)
	}
	return buf
}

// decodeNSECBitmap walks the window blocks in msg[off:end], returning the
// flattened set of type codes they encode.
func decodeNSECBitmap(msg []byte, off, end int) ([]TypeCode, error) {
	var types []TypeCode
	cur := off
	for cur < end {
		if cur+2 > end {
			return nil, newWireError("decodeNSECBitmap", cur, ErrInsufficientData)
		}
		block := int(msg[cur])
		bitmapLen := int(msg[cur+1])
		cur += 2
		if cur+bitmapLen > end {
			return nil, newWireError("decodeNSECBitmap", cur, ErrInsufficientData)
		}
		bitmap := msg[cur : cur+bitmapLen]
		for i, b := range bitmap {
			for bit := 0; bit < 8; bit++ {
				if b&(1<<(7-uint(bit))) != 0 {
					types = append(types, TypeCode(block*256+i*8+bit))
				}
			}
		}
		cur += bitmapLen
	}
	return types, nil
}
