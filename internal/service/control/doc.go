// Package control sequences service stops and starts around binary swaps,
// with bounded polling for stops and a settle delay for starts.
package control
