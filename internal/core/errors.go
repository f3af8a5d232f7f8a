// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared by sources, pipeline and reporters.
var (
	// Packet decoding errors
	ErrPacketTooShort      = errors.New("ozwpan: packet too short")
	ErrUnsupportedLinkType = errors.New("ozwpan: unsupported link type")

	// Source errors
	ErrSourceNotStarted = errors.New("ozwpan: source not started")
	ErrCaptureTimeout   = errors.New("ozwpan: capture poll timeout")

	// Pipeline errors
	ErrPipelineStopped = errors.New("ozwpan: pipeline stopped")

	// Reporter errors
	ErrReporterNotFound = errors.New("ozwpan: reporter not found")

	// Configuration errors
	ErrConfigInvalid = errors.New("ozwpan: invalid configuration")
)
