// Package textutil provides small text helpers shared across packages:
// filename and token sanitization, and a bounded tail buffer for capturing
// the last lines of a child process's stderr.
package textutil
