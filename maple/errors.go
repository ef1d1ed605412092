package maple

import "errors"

var (
	// ErrShortFrame indicates that a frame has fewer than the four header tokens.
	ErrShortFrame = errors.New("maple: frame shorter than 4 header tokens")

	// ErrTruncatedFrame indicates that a frame declares more payload words than it carries tokens.
	ErrTruncatedFrame = errors.New("maple: truncated frame, payload tokens missing")

	// ErrPayloadOverflow indicates that the declared word count implies a payload
	// beyond the 1024-byte capacity.
	ErrPayloadOverflow = errors.New("maple: declared word count exceeds payload capacity")

	// ErrInvalidToken indicates that a frame token is not a valid hexadecimal byte.
	ErrInvalidToken = errors.New("maple: invalid hex token")

	// ErrDataTooLarge indicates that a caller-supplied payload exceeds the message capacity.
	ErrDataTooLarge = errors.New("maple: data exceeds payload capacity")

	// ErrWordIndex indicates a word index outside the payload range.
	ErrWordIndex = errors.New("maple: word index out of range")
)
