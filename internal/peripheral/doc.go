// Package peripheral defines the domain model for serial Bluetooth relay
// modules (HC-05/HC-06 class peripherals and their BLE clones).
//
// It contains:
//   - the discovery record types shared by every transport
//   - the name heuristics that identify a candidate peripheral
//   - the capability interfaces the core drives (transport, radio,
//     runtime permissions, settings launcher)
//   - the error taxonomy surfaced to callers
package peripheral
