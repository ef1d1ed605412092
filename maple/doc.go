// Package maple defines the fixed-format peripheral-bus message exchanged with an
// emulated hardware accessory, and the ASCII line codec used to carry it over TCP.
//
// A Message mirrors the maple bus frame header: a command byte, destination and
// origin addresses, and a word count that declares how many 4-byte words of the
// payload are in use. The codec renders a message as a single line of two-digit
// hexadecimal tokens separated by spaces and terminated by CRLF:
//
//	07 01 02 01 DE AD BE EF\r\n
//
// The first four tokens are command, destination address, origin address and word
// count; the remaining wordCount*4 tokens are payload bytes. The encoder emits
// uppercase hex; the decoder accepts either case. Decoding derives the expected
// token count purely from the declared word count and rejects frames whose declared
// payload would exceed the 1024-byte capacity, so a corrupted or hostile peer can
// never write past the payload buffer.
package maple
