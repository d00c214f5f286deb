package aht20

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*SimBus)(nil)

// SimBus is an in-process AHT20 for hosts without the sensor.
// It answers status, trigger and frame reads like the real part.
type SimBus struct {
	mu         sync.Mutex
	celsius    func() float64
	conversion time.Duration
	readyAt    time.Time
	busy       bool

	// corruptNext flips the CRC of the next frame(s).
	corruptNext int
}

// NewSimBus creates a simulated sensor reporting celsius() on each
// measurement. Humidity is fixed at 50%.
func NewSimBus(celsius func() float64, conversion time.Duration) *SimBus {
	return &SimBus{celsius: celsius, conversion: conversion}
}

// CorruptNext makes the next n frames fail their checksum.
func (b *SimBus) CorruptNext(n int) {
	b.mu.Lock()
	b.corruptNext = n
	b.mu.Unlock()
}

// Tx implements drivers.I2C.
func (b *SimBus) Tx(_ uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch {
	case len(w) == 1 && w[0] == cmdStatus && len(r) == 1:
		r[0] = b.statusByte(now)
	case len(w) == 3 && w[0] == cmdTrigger:
		b.busy = true
		b.readyAt = now.Add(b.conversion)
	case len(w) == 0 && len(r) == frameLen:
		r[0] = b.statusByte(now)
		if r[0]&statusBusy == 0 {
			b.busy = false
		}
		encodeFrame(r, humidityRaw(50), tempRaw(b.celsius()))
		if b.corruptNext > 0 {
			b.corruptNext--
			r[frameLen-1] ^= 0xFF
		}
	}
	return nil
}

func (b *SimBus) statusByte(now time.Time) byte {
	s := byte(statusCalibrated)
	if b.busy && now.Before(b.readyAt) {
		s |= statusBusy
	}
	return s
}

func tempRaw(c float64) uint32 {
	raw := (c + 50) * 0x100000 / 200
	switch {
	case raw < 0:
		return 0
	case raw > 0xFFFFF:
		return 0xFFFFF
	}
	return uint32(raw)
}

func humidityRaw(pct float64) uint32 {
	return uint32(pct * 0x100000 / 100)
}

// encodeFrame fills bytes 1..6 of a frame whose status byte is already set.
func encodeFrame(r []byte, h, t uint32) {
	r[1] = byte(h >> 12)
	r[2] = byte(h >> 4)
	r[3] = byte((h&0xF)<<4 | (t>>16)&0x0F)
	r[4] = byte(t >> 8)
	r[5] = byte(t)
	r[6] = crc8(r[:frameLen-1])
}
