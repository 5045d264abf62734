// Package testutil contains helpers used across tests to build unified diffs
// and scripted model output without hand-writing hunk headers. They are not
// intended for production usage.
package testutil
