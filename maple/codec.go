package maple

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// headerTokens is the number of tokens before the payload: command, destination
// address, origin address and word count.
const headerTokens = 4

// Encode renders msg as one ASCII line: uppercase two-digit hex tokens separated
// by single spaces, terminated by CRLF. Only DataSize payload bytes are emitted.
func Encode(msg *Message) []byte {
	n := msg.DataSize()

	// 3 bytes per token (2 hex digits + separator), CRLF in place of the last separator.
	buf := make([]byte, 0, (headerTokens+n)*3+1)

	buf = appendHexByte(buf, msg.Command)
	buf = append(buf, ' ')
	buf = appendHexByte(buf, msg.DestAP)
	buf = append(buf, ' ')
	buf = appendHexByte(buf, msg.OriginAP)
	buf = append(buf, ' ')
	buf = appendHexByte(buf, msg.WordCount)

	for i := 0; i < n; i++ {
		buf = append(buf, ' ')
		buf = appendHexByte(buf, msg.Payload[i])
	}

	return append(buf, '\r', '\n')
}

// Decode parses one frame line into a fresh Message.
//
// The line may carry a trailing CRLF; it splits on any whitespace. The expected
// token count derives purely from the declared word count. Extra trailing tokens
// are ignored. Decode never writes past the payload capacity: a word count
// implying more than PayloadSize bytes fails with ErrPayloadOverflow before any
// payload token is parsed.
func Decode(line []byte) (*Message, error) {
	tokens := strings.Fields(string(line))
	if len(tokens) < headerTokens {
		return nil, fmt.Errorf("%w: got %d tokens", ErrShortFrame, len(tokens))
	}

	msg := &Message{}

	var err error
	if msg.Command, err = parseHexByte(tokens[0]); err != nil {
		return nil, err
	}
	if msg.DestAP, err = parseHexByte(tokens[1]); err != nil {
		return nil, err
	}
	if msg.OriginAP, err = parseHexByte(tokens[2]); err != nil {
		return nil, err
	}

	// The word count is parsed wide on purpose: a hostile peer may declare a
	// count that does not fit in a byte, and that must surface as an overflow,
	// not as a silent truncation.
	wordCount, err := strconv.ParseUint(tokens[3], 16, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: word count token %q", ErrPayloadOverflow, tokens[3])
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidToken, tokens[3])
	}
	if wordCount > MaxWordCount {
		return nil, fmt.Errorf("%w: %d words", ErrPayloadOverflow, wordCount)
	}
	msg.WordCount = byte(wordCount)

	dataSize := int(wordCount) * WordSize
	if len(tokens) < headerTokens+dataSize {
		return nil, fmt.Errorf("%w: want %d payload tokens, got %d",
			ErrTruncatedFrame, dataSize, len(tokens)-headerTokens)
	}

	for i := 0; i < dataSize; i++ {
		b, err := parseHexByte(tokens[headerTokens+i])
		if err != nil {
			return nil, err
		}
		msg.Payload[i] = b
	}

	return msg, nil
}

func appendHexByte(buf []byte, b byte) []byte {
	return append(buf, hexDigits[b>>4], hexDigits[b&0x0f])
}

func parseHexByte(token string) (byte, error) {
	v, err := strconv.ParseUint(token, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}

	return byte(v), nil
}
