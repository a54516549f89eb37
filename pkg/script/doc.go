// Package script implements a line-oriented request/response language used to
// drive devices over a commdriver.Driver.
//
// A script line has a direction and up to two fields:
//
//	> "AT"  | T"OK"                 send "AT", then wait for the token OK
//	< R"^STATUS: [0-9]+$" | "ack"   wait for a full regex match, then send "ack"
//	> H"DEADBEEF"                   send four raw bytes
//	> F"firmware.bin,4096"          send a file in 4096 byte chunks
//
// '>' sends the first field and receives the second; '<' does the reverse.
// Each field carries a decorator that fixes how it is encoded when sent and
// how it is matched when received:
//
//	"text"       delimited string ("" is the empty string)
//	R"pattern"   regular expression, receive only, must match all received bytes
//	T"bytes"     token searched for in the stream
//	L"text"      line terminated by '\n'
//	S"n"         exactly n bytes, receive only
//	H"hex"       even-length hex stream
//	F"path,..."  file; path[,chunk] when sent, path[,size[,chunk]] when received
//	text         bare text sent or compared as-is
//
// Script files may contain '#' comments, block comments between "---" and
// "!--" lines, and constant macros defined as NAME := value and referenced as
// $NAME.
//
// Processing happens in two passes. Every line is parsed, classified and
// checked against the direction rules before any I/O; only a script whose
// lines are all valid is executed, in file order, stopping at the first
// failing command.
package script
