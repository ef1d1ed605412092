package maple

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeGoldenFrame(t *testing.T) {
	require := require.New(t)

	msg := &Message{
		Command:   0x07,
		DestAP:    0x01,
		OriginAP:  0x02,
		WordCount: 0x01,
	}
	copy(msg.Payload[:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	line := Encode(msg)
	require.Equal("07 01 02 01 DE AD BE EF\r\n", string(line))

	decoded, err := Decode(line)
	require.NoError(err)
	require.Equal(msg, decoded)
}

func TestDecodeAcceptsLowercase(t *testing.T) {
	require := require.New(t)

	decoded, err := Decode([]byte("07 01 02 01 de ad be ef\r\n"))
	require.NoError(err)
	require.Equal(byte(0x07), decoded.Command)
	require.Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}, decoded.Data())
}

func TestDecodeWithoutTerminator(t *testing.T) {
	require := require.New(t)

	// The transport strips CRLF before handing the line to the decoder.
	decoded, err := Decode([]byte("07 01 02 00"))
	require.NoError(err)
	require.Equal(byte(0x07), decoded.Command)
	require.Equal(0, decoded.DataSize())
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)

	rnd := rand.New(rand.NewSource(37393))

	for _, wordCount := range []byte{0, 1, 2, 16, 100, MaxWordCount} {
		msg := &Message{
			Command:   byte(rnd.Intn(256)),
			DestAP:    byte(rnd.Intn(256)),
			OriginAP:  byte(rnd.Intn(256)),
			WordCount: wordCount,
		}
		_, _ = rnd.Read(msg.Payload[:msg.DataSize()])

		decoded, err := Decode(Encode(msg))
		require.NoError(err)
		require.Equal(msg, decoded, "word count %d", wordCount)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	require := require.New(t)

	for _, line := range []string{"", "07", "07 01", "07 01 02", "  \r\n"} {
		_, err := Decode([]byte(line))
		require.ErrorIs(err, ErrShortFrame, "line %q", line)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	require := require.New(t)

	// Declares 3 words (12 payload bytes) but carries none.
	_, err := Decode([]byte("07 01 02 03"))
	require.ErrorIs(err, ErrTruncatedFrame)

	// Declares 1 word but carries only 3 of 4 payload bytes.
	_, err = Decode([]byte("07 01 02 01 DE AD BE"))
	require.ErrorIs(err, ErrTruncatedFrame)
}

func TestDecodePayloadOverflow(t *testing.T) {
	require := require.New(t)

	// 0x101 words would be 1028 bytes, past the 1024-byte payload.
	_, err := Decode([]byte("07 01 02 101"))
	require.ErrorIs(err, ErrPayloadOverflow)

	// 0x100 words is 1024 bytes, but the word count field is a single byte.
	_, err = Decode([]byte("07 01 02 100"))
	require.ErrorIs(err, ErrPayloadOverflow)

	_, err = Decode([]byte("07 01 02 FFFFFFFF"))
	require.ErrorIs(err, ErrPayloadOverflow)
}

func TestDecodeInvalidToken(t *testing.T) {
	require := require.New(t)

	_, err := Decode([]byte("zz 01 02 00"))
	require.ErrorIs(err, ErrInvalidToken)

	_, err = Decode([]byte("07 01 02 xx"))
	require.ErrorIs(err, ErrInvalidToken)

	_, err = Decode([]byte("07 01 02 01 DE AD BE street"))
	require.ErrorIs(err, ErrInvalidToken)
}

func TestDecodeIgnoresExtraTokens(t *testing.T) {
	require := require.New(t)

	decoded, err := Decode([]byte("07 01 02 01 DE AD BE EF 11 22 33"))
	require.NoError(err)
	require.Equal(byte(1), decoded.WordCount)
	require.Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}, decoded.Data())
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte("07 01 02 01 DE AD BE EF\r\n"))
	f.Add([]byte("07 01 02 00"))
	f.Add([]byte("07 01 02 101"))
	f.Add([]byte("ff ff ff ff"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, line []byte) {
		msg, err := Decode(line)
		if err != nil {
			return
		}

		// Any successfully decoded message must survive a re-encode round trip.
		decoded, err := Decode(Encode(msg))
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if *decoded != *msg {
			t.Fatalf("round trip mismatch: %s != %s", decoded, msg)
		}
	})
}

func BenchmarkEncode(b *testing.B) {
	msg := &Message{Command: 0x0C, DestAP: 0x01, OriginAP: 0x00, WordCount: 128}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Encode(msg)
	}
}

func BenchmarkDecode(b *testing.B) {
	msg := &Message{Command: 0x0C, DestAP: 0x01, OriginAP: 0x00, WordCount: 128}
	line := Encode(msg)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(line)
	}
}
