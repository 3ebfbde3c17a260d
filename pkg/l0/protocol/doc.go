// Package protocol implements the line oriented text protocol spoken
// between the host and the MCU over the serial link.
//
// Every message is a single line terminated by '\n'.
//
// MCU to host, one attribute per line:
//
//	speed <number>
//	throttle <number>
//	steering <number>
//	mode auto|manual
//
// Host to MCU:
//
//	poll                  ack of a line which named no attribute
//	poll <attribute>      ack of an attribute, requests the next value
//	command speed <number>
//	command throttle <number>
//	command steering <number>
//	command shutdown
//
// Decoding is lenient: the line is lower-cased, the attribute is
// identified by keyword and the value is the first numeral found.
package protocol
