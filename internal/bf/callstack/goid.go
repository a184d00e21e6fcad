// Copyright 2025 The racedetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callstack

import "runtime"

// goroutineID returns the current goroutine ID by parsing the first line
// of runtime.Stack output ("goroutine 123 [running]:").
//
// Returns 0 if parsing fails, which maps every such goroutine onto a
// shared fallback stack rather than losing frames.
func goroutineID() int64 {
	// Only the first line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine ID from stack trace bytes.
//
// Expected format: "goroutine 123 [running]:..."
// Returns the numeric ID (123 in this example) or 0 if the format is invalid.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			// Usually the space before "[running]".
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
