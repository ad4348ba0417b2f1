// Package fetch downloads release archives and stages candidate binaries.
//
// Staging is strictly isolated from the live installation: the fetcher
// downloads into a temporary directory, extracts the expected binary,
// validates it with a version probe, and hands the result to the
// orchestrator. A fetch failure leaves nothing behind.
package fetch
