package core

import "errors"

var (
	// Packet decoding errors
	ErrPacketTooShort = errors.New("hmsniff: packet too short")
	ErrBadHeaderLen   = errors.New("hmsniff: invalid header length")
)
