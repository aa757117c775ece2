package kef

import (
	"errors"
	"fmt"
	"math"

	"kefctl/internal/speaker"
)

const (
	frameGet   = 'G'
	frameSet   = 'S'
	frameReply = 'R'

	midGet = 0x80
	midSet = 0x81

	ackStatus = 0x11
	ackEnd    = 0xFF
)

// Регистры устройства.
const (
	regVolume          byte = 0x25
	regDeskMode        byte = 0x27
	regWallMode        byte = 0x28
	regPhaseCorrection byte = 0x29
	regHighPass        byte = 0x2A
	regLowPass         byte = 0x2B
	regSubPolarity     byte = 0x2C
	regBassExtension   byte = 0x2D
	regSource          byte = 0x30
)

const (
	volumeMask = 0x7F
	mutedBit   = 0x80

	sourceMask      = 0x0F
	standbyMask     = 0x30
	standbyShift    = 4
	orientationBit  = 0x40
	poweredOffBit   = 0x80
	getReplyLength  = 5
	setReplyLength  = 3
	maxVolumePctRaw = 100
)

var errBadReply = errors.New("malformed speaker reply")

var sourceCodes = map[speaker.Source]byte{
	speaker.SourceWifi:      0x02,
	speaker.SourceBluetooth: 0x09,
	speaker.SourceAux:       0x0A,
	speaker.SourceOptical:   0x0B,
	speaker.SourceUsb:       0x0C,
}

var standbyMinutes = map[byte]int{
	0: 20,
	1: 60,
	2: 0,
}

var bassExtensions = map[byte]string{
	0: "standard",
	1: "less",
	2: "extra",
}

func getFrame(reg byte) []byte {
	return []byte{frameGet, reg, midGet}
}

func setFrame(reg, value byte) []byte {
	return []byte{frameSet, reg, midSet, value}
}

func parseGetReply(reg byte, reply []byte) (byte, error) {
	if len(reply) != getReplyLength || reply[0] != frameReply || reply[1] != reg || reply[2] != midSet || reply[4] != ackEnd {
		return 0, fmt.Errorf("register 0x%02x: %w: % x", reg, errBadReply, reply)
	}
	return reply[3], nil
}

func parseSetReply(reply []byte) error {
	if len(reply) != setReplyLength || reply[0] != frameReply || reply[1] != ackStatus || reply[2] != ackEnd {
		return fmt.Errorf("%w: % x", errBadReply, reply)
	}
	return nil
}

func volumeFromByte(b byte) (float64, bool) {
	return float64(b&volumeMask) / maxVolumePctRaw, b&mutedBit != 0
}

func volumeToByte(volume float64, muted bool) byte {
	pct := byte(math.Round(speaker.ClampVolume(volume, 1) * maxVolumePctRaw))
	if muted {
		pct |= mutedBit
	}
	return pct
}

func sourceFromByte(b byte) (speaker.Source, error) {
	code := b & sourceMask
	for s, c := range sourceCodes {
		if c == code {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source code 0x%02x: %w", code, errBadReply)
}

func stateFromByte(b byte) (speaker.State, error) {
	src, err := sourceFromByte(b)
	if err != nil {
		return speaker.State{}, err
	}
	st := speaker.State{
		IsOn:           b&poweredOffBit == 0,
		StandbyMinutes: standbyMinutes[(b&standbyMask)>>standbyShift],
		Source:         src,
		Orientation:    speaker.OrientationRight,
	}
	if b&orientationBit != 0 {
		st.Orientation = speaker.OrientationLeft
	}
	return st, nil
}

// withSource заменяет код источника и включает питание, сохраняя standby и ориентацию.
func withSource(b byte, s speaker.Source) (byte, error) {
	code, ok := sourceCodes[s]
	if !ok {
		return 0, fmt.Errorf("unsupported source %q", s)
	}
	return (b &^ (sourceMask | poweredOffBit)) | code, nil
}

func withPower(b byte, on bool) byte {
	if on {
		return b &^ poweredOffBit
	}
	return b | poweredOffBit
}
