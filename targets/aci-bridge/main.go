//go:build rp2040 || rp2350

// Firmware for the serial bridge: it exposes the nRF8001 control lines and
// SPI bus of an RP2040/RP2350 board to the host over USB CDC.
package main

import (
	"machine"
	"time"

	"goaci/bridge"
)

var (
	inputBuffer  *bridge.FifoBuffer
	outputBuffer *bridge.ScratchOutput
	server       *bridge.Server

	msgerrors                uint32
	consecutiveWriteFailures uint32
)

func main() {
	// Disable a watchdog left running by a previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()

	spi, err := InitSPI()
	if err != nil {
		return
	}
	server = bridge.NewServer(NewRPGPIODriver(), spi)

	inputBuffer = bridge.NewFifoBuffer(4 * bridge.FrameLengthMax)
	outputBuffer = bridge.NewScratchOutput()

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				in := bridge.NewSliceInputBuffer(data)

				for server.Next(in, outputBuffer) {
					writeUSB()
				}

				if consumed := len(data) - in.Available(); consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves USB bytes into the input FIFO
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}
			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB flushes the output buffer, dropping it after repeated failures
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
