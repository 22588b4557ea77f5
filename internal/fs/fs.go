// Package fs holds filesystem helpers: free space queries and atomic JSON writes.
package fs

import "errors"

// ErrUnsupportedOS is returned by Available on platforms without a free space query.
var ErrUnsupportedOS = errors.New("free space check not supported on this platform")
