package wire

import "encoding/binary"

// Question is a decoded DNS question section entry.
type Question struct {
	Name            string
	Type            TypeCode
	Class           ClassCode
	UnicastResponse bool // top bit of the on-wire class word
}

// ResourceRecord is a decoded DNS answer/authority/additional section
// entry.
type ResourceRecord struct {
	Name       string
	Type       TypeCode
	Class      ClassCode
	CacheFlush bool // top bit of the on-wire class word
	TTL        uint32
	Rdata      Rdata
}

// EncodeQuestion appends the wire encoding of q to buf.
func EncodeQuestion(buf []byte, c *Compress, q Question) ([]byte, error) {
	var err error
	buf, err = c.EncodeName(buf, q.Name)
	if err != nil {
		return nil, newWireError("encodeQuestion", -1, err)
	}
	buf = binary.BigEndian.AppendUint16(buf, q.Type.ToInt())
	buf = binary.BigEndian.AppendUint16(buf, joinClassWord(q.Class, q.UnicastResponse))
	return buf, nil
}

// DecodeQuestion decodes one question starting at offset off within msg,
// returning the question and the offset immediately following it.
func DecodeQuestion(msg []byte, off int) (Question, int, error) {
	name, next, err := DecodeName(msg, off)
	if err != nil {
		return Question{}, 0, err
	}
	if next+4 > len(msg) {
		return Question{}, 0, newWireError("decodeQuestion", next, ErrInsufficientData)
	}
	typ := TypeFromInt(binary.BigEndian.Uint16(msg[next : next+2]))
	cls, unicast := splitClassWord(binary.BigEndian.Uint16(msg[next+2 : next+4]))
	return Question{
		Name:            name,
		Type:            typ,
		Class:           cls,
		UnicastResponse: unicast,
	}, next + 4, nil
}

// EncodeResource appends the wire encoding of r to buf.
func EncodeResource(buf []byte, c *Compress, r ResourceRecord) ([]byte, error) {
	var err error
	buf, err = c.EncodeName(buf, r.Name)
	if err != nil {
		return nil, newWireError("encodeResource", -1, err)
	}
	buf = binary.BigEndian.AppendUint16(buf, r.Type.ToInt())
	buf = binary.BigEndian.AppendUint16(buf, joinClassWord(r.Class, r.CacheFlush))
	buf = binary.BigEndian.AppendUint32(buf, r.TTL)

	rdlenOff := len(buf)
	buf = binary.BigEndian.AppendUint16(buf, 0) // placeholder, patched below
	buf, rdlen, err := EncodeRdata(buf, c, r.Type, r.Rdata)
	if err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint16(buf[rdlenOff:], uint16(rdlen))
	return buf, nil
}

// DecodeResource decodes one resource record starting at offset off
// within msg, returning the record and the offset immediately following
// it.
func DecodeResource(msg []byte, off int) (ResourceRecord, int, error) {
	name, next, err := DecodeName(msg, off)
	if err != nil {
		return ResourceRecord{}, 0, err
	}
	if next+10 > len(msg) {
		return ResourceRecord{}, 0, newWireError("decodeResource", next, ErrInsufficientData)
	}
	typ := TypeFromInt(binary.BigEndian.Uint16(msg[next : next+2]))
	cls, flush := splitClassWord(binary.BigEndian.Uint16(msg[next+2 : next+4]))
	ttl := binary.BigEndian.Uint32(msg[next+4 : next+8])
	rdlength := int(binary.BigEndian.Uint16(msg[next+8 : next+10]))
	rdataOff := next + 10

	rdata, err := DecodeRdata(msg, rdataOff, rdlength, typ)
	if err != nil {
		return ResourceRecord{}, 0, err
	}

	return ResourceRecord{
		Name:       name,
		Type:       typ,
		Class:      cls,
		CacheFlush: flush,
		TTL:        ttl,
		Rdata:      rdata,
	}, rdataOff + rdlength, nil
}
