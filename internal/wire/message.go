package wire

// Message is a fully decoded DNS message: header plus the four sections
// in wire order. No cross-section uniqueness is enforced here; that is a
// cache-level concern.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// EncodeMessage encodes m as a new byte slice. The header's section
// counts are always overwritten from the actual slice lengths, regardless
// of what m.Header carries in; every name in every section shares one
// Compress suffix map, so a question and a later answer (or two
// questions) that share a trailing name component compress against each
// other.
func EncodeMessage(m Message) ([]byte, error) {
	h := m.Header
	h.QDCount = uint16(len(m.Questions))
	h.ANCount = uint16(len(m.Answers))
	h.NSCount = uint16(len(m.Authorities))
	h.ARCount = uint16(len(m.Additionals))

	buf := make([]byte, 0, HeaderSize+64)
	buf = EncodeHeader(buf, h)

	c := NewCompress()

	for _, q := range m.Questions {
		var err error
		buf, err = EncodeQuestion(buf, c, q)
		if err != nil {
			return nil, newWireError("encodeMessage", -1, err)
		}
	}
	for _, sec := range [][]ResourceRecord{m.Answers, m.Authorities, m.Additionals} {
		for _, r := range sec {
			var err error
			buf, err = EncodeResource(buf, c, r)
			if err != nil {
				return nil, newWireError("encodeMessage", -1, err)
			}
		}
	}

	return buf, nil
}

// DecodeMessage decodes a message from the front of msg, returning the
// decoded message and any bytes in msg past the end of the message (mDNS
// messages are always exactly one datagram, but callers that frame
// multiple messages can use the trailing slice to find the next one).
func DecodeMessage(msg []byte) (Message, []byte, error) {
	if len(msg) < HeaderSize {
		return Message{}, nil, newWireError("decodeMessage", 0, ErrInsufficientData)
	}

	h, err := DecodeHeader(msg)
	if err != nil {
		return Message{}, nil, err
	}

	off := HeaderSize
	var m Message
	m.Header = h

	for i := 0; i < int(h.QDCount); i++ {
		q, next, err := DecodeQuestion(msg, off)
		if err != nil {
			return Message{}, nil, err
		}
		m.Questions = append(m.Questions, q)
		off = next
	}

	sections := []struct {
		dst   *[]ResourceRecord
		count int
	}{
		{&m.Answers, int(h.ANCount)},
		{&m.Authorities, int(h.NSCount)},
		{&m.Additionals, int(h.ARCount)},
	}
	for _, sec := range sections {
		for i := 0; i < sec.count; i++ {
			r, next, err := DecodeResource(msg, off)
			if err != nil {
				return Message{}, nil, err
			}
			*sec.dst = append(*sec.dst, r)
			off = next
		}
	}

	return m, msg[off:], nil
}
