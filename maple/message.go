package maple

import (
	"encoding/binary"
	"fmt"
)

const (
	// PayloadSize is the fixed capacity of a message payload in bytes.
	PayloadSize = 1024

	// WordSize is the size of one payload word in bytes.
	WordSize = 4

	// MaxWordCount is the largest word count representable in the one-byte
	// WordCount field. 255 words is 1020 bytes, which fits the payload.
	MaxWordCount = 255
)

// Maple command codes used by the accessory protocol.
const (
	CmdDeviceInfoRequest   byte = 0x01
	CmdExtendedInfoRequest byte = 0x02
	CmdDeviceReset         byte = 0x03
	CmdDeviceShutdown      byte = 0x04
	CmdGetCondition        byte = 0x09
	CmdGetMemoryInfo       byte = 0x0A
	CmdBlockRead           byte = 0x0B
	CmdBlockWrite          byte = 0x0C
	CmdSetCondition        byte = 0x0E

	RespDeviceInfo   byte = 0x05
	RespExtendedInfo byte = 0x06
	RespAck          byte = 0x07
	RespDataTransfer byte = 0x08
)

// Message is the unit of exchange with the emulated accessory.
//
// It is a value type: callers construct it, the codec consumes it, and every
// decoded frame produces a fresh instance. WordCount declares how many 4-byte
// words of Payload are in use; bytes beyond DataSize are unspecified and are
// never transmitted.
type Message struct {
	Command   byte
	DestAP    byte
	OriginAP  byte
	WordCount byte
	Payload   [PayloadSize]byte
}

// DataSize returns the number of payload bytes in use.
func (m *Message) DataSize() int {
	return int(m.WordCount) * WordSize
}

// Data returns the in-use portion of the payload.
// The returned slice aliases the message payload.
func (m *Message) Data() []byte {
	return m.Payload[:m.DataSize()]
}

// SetData copies data into the payload and sets WordCount to the number of
// words needed to cover it, rounding up to a whole word.
func (m *Message) SetData(data []byte) error {
	if len(data) > MaxWordCount*WordSize {
		return fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(data))
	}

	copy(m.Payload[:], data)
	m.WordCount = byte((len(data) + WordSize - 1) / WordSize)

	return nil
}

// SetWord stores a 32-bit word at the given word index, growing WordCount to
// cover the index if needed. Words are little-endian, matching the accessory's
// in-memory layout.
func (m *Message) SetWord(index int, word uint32) error {
	if index < 0 || index >= MaxWordCount {
		return fmt.Errorf("%w: %d", ErrWordIndex, index)
	}

	binary.LittleEndian.PutUint32(m.Payload[index*WordSize:], word)
	if int(m.WordCount) <= index {
		m.WordCount = byte(index + 1)
	}

	return nil
}

// Word returns the 32-bit word at the given word index, or zero when the index
// is outside the in-use payload.
func (m *Message) Word(index int) uint32 {
	if index < 0 || index >= int(m.WordCount) {
		return 0
	}

	return binary.LittleEndian.Uint32(m.Payload[index*WordSize:])
}

// String returns a short debug form without the payload body.
func (m *Message) String() string {
	return fmt.Sprintf("maple.Message{cmd:%02X dest:%02X origin:%02X words:%d}",
		m.Command, m.DestAP, m.OriginAP, m.WordCount)
}
