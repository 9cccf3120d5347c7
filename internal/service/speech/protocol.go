package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// protocolVersion is the only binary protocol version the ASR service speaks.
const protocolVersion = 0b0001

// MessageType is the 4-bit frame type.
type MessageType uint8

const (
	FullClientRequest  MessageType = 0b0001
	AudioOnlyRequest   MessageType = 0b0010
	FullServerResponse MessageType = 0b1001
	ServerAck          MessageType = 0b1011
	ErrorMessage       MessageType = 0b1111
)

// MessageFlags is the 4-bit sequence flag field.
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
)

// SerializationMethod is the 4-bit payload encoding.
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod is the 4-bit payload compression.
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// frame is one binary websocket message.
//
//	byte 0: version(4) | header size in words(4)
//	byte 1: type(4)    | flags(4)
//	byte 2: serial(4)  | compression(4)
//	byte 3: reserved
//	[sequence int32] [error code uint32] payload size uint32, payload
type frame struct {
	Type          MessageType
	Flags         MessageFlags
	Serialization SerializationMethod
	Compression   CompressionMethod
	Sequence      int32
	ErrorCode     uint32
	Payload       []byte
}

func (f frame) hasSequence() bool {
	return f.Flags == PositiveSequenceNumber || f.Flags == NegativeSequenceNumber
}

// isLast reports whether the sender marked this as its final frame.
func (f frame) isLast() bool {
	return f.Flags == LastPacketNoSequence || f.Flags == NegativeSequenceNumber
}

func (f frame) marshal() []byte {
	var buf bytes.Buffer
	buf.Grow(12 + len(f.Payload))

	buf.WriteByte(protocolVersion<<4 | 0b0001)
	buf.WriteByte(uint8(f.Type)<<4 | uint8(f.Flags))
	buf.WriteByte(uint8(f.Serialization)<<4 | uint8(f.Compression))
	buf.WriteByte(0)

	word := make([]byte, 4)
	if f.hasSequence() {
		binary.BigEndian.PutUint32(word, uint32(f.Sequence))
		buf.Write(word)
	}
	if f.Type == ErrorMessage {
		binary.BigEndian.PutUint32(word, f.ErrorCode)
		buf.Write(word)
	}
	binary.BigEndian.PutUint32(word, uint32(len(f.Payload)))
	buf.Write(word)
	buf.Write(f.Payload)

	return buf.Bytes()
}

func unmarshalFrame(data []byte) (frame, error) {
	if len(data) < 4 {
		return frame{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	if version := data[0] >> 4; version != protocolVersion {
		return frame{}, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := frame{
		Type:          MessageType(data[1] >> 4),
		Flags:         MessageFlags(data[1] & 0x0F),
		Serialization: SerializationMethod(data[2] >> 4),
		Compression:   CompressionMethod(data[2] & 0x0F),
	}

	headerSize := int(data[0]&0x0F) * 4
	if headerSize < 4 || len(data) < headerSize {
		return frame{}, fmt.Errorf("invalid header size: %d", headerSize)
	}
	r := bytes.NewReader(data[headerSize:])

	if f.hasSequence() {
		if err := binary.Read(r, binary.BigEndian, &f.Sequence); err != nil {
			return frame{}, fmt.Errorf("failed to read sequence: %w", err)
		}
	}
	if f.Type == ErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.ErrorCode); err != nil {
			return frame{}, fmt.Errorf("failed to read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		// acks may carry no payload size at all
		if f.Type == ServerAck && err == io.EOF {
			return f, nil
		}
		return frame{}, fmt.Errorf("failed to read payload size: %w", err)
	}
	if int(size) > r.Len() {
		return frame{}, fmt.Errorf("payload truncated: want %d bytes, have %d", size, r.Len())
	}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return frame{}, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	return f, nil
}

// newConfigFrame wraps the gzip-compressed JSON session parameters.
func newConfigFrame(payload []byte) frame {
	return frame{
		Type:          FullClientRequest,
		Flags:         NoSequenceNumber,
		Serialization: JSONSerialization,
		Compression:   GzipCompression,
		Payload:       payload,
	}
}

// newAudioFrame wraps one compressed audio chunk. The last chunk carries the
// negated sequence number.
func newAudioFrame(payload []byte, sequence int32, last bool) frame {
	f := frame{
		Type:          AudioOnlyRequest,
		Flags:         PositiveSequenceNumber,
		Serialization: NoSerialization,
		Compression:   GzipCompression,
		Sequence:      sequence,
		Payload:       payload,
	}
	if last {
		f.Flags = NegativeSequenceNumber
		f.Sequence = -sequence
	}
	return f
}
