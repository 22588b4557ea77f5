//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !windows

package fs

// Available always fails with ErrUnsupportedOS.
func Available(string) (uint64, error) {
	return 0, ErrUnsupportedOS
}
