// Package platform brings up the device's peripherals: the user button, the
// status LED and the temperature sensor.
//
// Backends are chosen by the platform section of config.yaml:
//
//	button: sim | none      simulated presses come from Platform.PressButton
//	led:    sim | none      sim logs every state change
//	sensor: sim | aht20 | modbus
//
// The sim sensor runs the real AHT20 driver against an in-process bus, so
// frame decoding and checksum handling are the same on a bench host as on
// hardware.
//
// ButtonClicked latches presses between polls: any number of presses since
// the last call report as a single click.
package platform
