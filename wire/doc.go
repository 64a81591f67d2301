// Package wire defines the JSON representation of channel and thread states
// and of the hub API request bodies. Amounts and counters are decimal strings,
// addresses are lowercase 0x-hex.
package wire
