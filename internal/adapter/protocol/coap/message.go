// Package coap implements a minimal RFC 7252 CoAP server: enough of the
// message format and option handling to serve the three resources this
// platform exposes. It is not a general-purpose CoAP stack (no blockwise
// transfer, no observe, no retransmission of confirmable messages).
package coap

import (
	"encoding/binary"
	"errors"
)

type MessageType uint8

const (
	TypeConfirmable    MessageType = 0
	TypeNonConfirmable MessageType = 1
	TypeAcknowledgement MessageType = 2
	TypeReset           MessageType = 3
)

// Code is a CoAP method or response code, encoded as (class<<5)|detail.
type Code uint8

const (
	CodeGET  Code = 0x01
	CodePOST Code = 0x02

	CodeCreated             Code = 0x41 // 2.01
	CodeContent             Code = 0x45 // 2.05
	CodeBadRequest          Code = 0x80 // 4.00
	CodeForbidden           Code = 0x83 // 4.03
	CodeNotFound            Code = 0x84 // 4.04
	CodeInternalServerError Code = 0xA0 // 5.00
	CodeServiceUnavailable  Code = 0xA3 // 5.03
)

const (
	optionURIPath      uint16 = 11
	optionContentFormat uint16 = 12
	optionURIQuery     uint16 = 15
)

const (
	ContentFormatJSON = 50
	ContentFormatCBOR = 60
)

var errTruncated = errors.New("coap: truncated message")

type option struct {
	number uint16
	value  []byte
}

// Message is a decoded CoAP datagram.
type Message struct {
	Version   uint8
	Type      MessageType
	Code      Code
	MessageID uint16
	Token     []byte
	Options   []option
	Payload   []byte
}

// Decode parses a raw UDP datagram into a CoAP message.
func Decode(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, errTruncated
	}
	m := &Message{
		Version:   data[0] >> 6,
		Type:      MessageType((data[0] >> 4) & 0x3),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}
	tokenLen := int(data[0] & 0xF)
	offset := 4
	if offset+tokenLen > len(data) {
		return nil, errTruncated
	}
	m.Token = data[offset : offset+tokenLen]
	offset += tokenLen

	optionNumber := uint16(0)
	for offset < len(data) {
		if data[offset] == 0xFF {
			offset++
			m.Payload = data[offset:]
			break
		}
		delta := int(data[offset] >> 4)
		length := int(data[offset] & 0xF)
		offset++

		var err error
		delta, offset, err = extendOptionField(delta, data, offset)
		if err != nil {
			return nil, err
		}
		length, offset, err = extendOptionField(length, data, offset)
		if err != nil {
			return nil, err
		}
		if offset+length > len(data) {
			return nil, errTruncated
		}
		optionNumber += uint16(delta)
		m.Options = append(m.Options, option{number: optionNumber, value: data[offset : offset+length]})
		offset += length
	}
	return m, nil
}

// extendOptionField resolves the RFC 7252 §3.1 extended delta/length
// encoding: 13 means "add an 8-bit extended value plus 13", 14 means "add a
// 16-bit extended value plus 269".
func extendOptionField(nibble int, data []byte, offset int) (int, int, error) {
	switch nibble {
	case 13:
		if offset >= len(data) {
			return 0, offset, errTruncated
		}
		return int(data[offset]) + 13, offset + 1, nil
	case 14:
		if offset+1 >= len(data) {
			return 0, offset, errTruncated
		}
		return int(binary.BigEndian.Uint16(data[offset:offset+2])) + 269, offset + 2, nil
	case 15:
		return 0, offset, errors.New("coap: reserved option field value 15")
	default:
		return nibble, offset, nil
	}
}

// URIPath reassembles the request's Uri-Path options into a leading-slash path.
func (m *Message) URIPath() string {
	path := ""
	for _, opt := range m.Options {
		if opt.number == optionURIPath {
			path += "/" + string(opt.value)
		}
	}
	if path == "" {
		return "/"
	}
	return path
}

// URIQuery returns the Uri-Query options as a key/value map, splitting each
// on its first '='.
func (m *Message) URIQuery() map[string]string {
	query := make(map[string]string)
	for _, opt := range m.Options {
		if opt.number != optionURIQuery {
			continue
		}
		kv := string(opt.value)
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				query[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return query
}

// ContentFormat returns the request's Content-Format option value, or -1 if absent.
func (m *Message) ContentFormat() int {
	for _, opt := range m.Options {
		if opt.number == optionContentFormat {
			if len(opt.value) == 0 {
				return 0
			}
			v := 0
			for _, b := range opt.value {
				v = v<<8 | int(b)
			}
			return v
		}
	}
	return -1
}

// Response builds an acknowledgement carrying code and payload, echoing the
// request's token and message id as RFC 7252 requires for a piggybacked reply.
func (m *Message) Response(code Code, payload []byte) *Message {
	return &Message{
		Version:   1,
		Type:      TypeAcknowledgement,
		Code:      code,
		MessageID: m.MessageID,
		Token:     m.Token,
		Payload:   payload,
	}
}

// Encode serializes m back into a raw UDP datagram. Options must already be
// in ascending option-number order, as RFC 7252's delta encoding requires.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, 16+len(m.Payload))
	first := (1 << 6) | (uint8(m.Type) << 4) | uint8(len(m.Token)&0xF)
	buf = append(buf, first, uint8(m.Code))
	mid := make([]byte, 2)
	binary.BigEndian.PutUint16(mid, m.MessageID)
	buf = append(buf, mid...)
	buf = append(buf, m.Token...)

	lastNumber := uint16(0)
	for _, opt := range m.Options {
		delta := opt.number - lastNumber
		lastNumber = opt.number
		buf = appendOption(buf, delta, opt.value)
	}

	if len(m.Payload) > 0 {
		buf = append(buf, 0xFF)
		buf = append(buf, m.Payload...)
	}
	return buf
}

func appendOption(buf []byte, delta uint16, value []byte) []byte {
	deltaNibble, deltaExt := optionField(delta)
	lengthNibble, lengthExt := optionField(uint16(len(value)))
	buf = append(buf, byte(deltaNibble<<4)|byte(lengthNibble))
	buf = append(buf, deltaExt...)
	buf = append(buf, lengthExt...)
	return append(buf, value...)
}

// optionField returns the 4-bit nibble and any extended bytes for a
// delta/length value per RFC 7252 §3.1.
func optionField(v uint16) (nibble int, extended []byte) {
	switch {
	case v < 13:
		return int(v), nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, v-269)
		return 14, ext
	}
}
