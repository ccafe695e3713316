// Package iox provides small I/O resource-cleanup helpers used across the
// LookerClient and snapshot sink.
package iox

import "io"

// DiscardClose closes c and discards the error. Use in defer statements
// where the close error is unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, for t.Cleanup
// registration.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
func DiscardErr(fn func() error) { _ = fn() }
