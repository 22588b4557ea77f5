//go:build windows

package fs

import "golang.org/x/sys/windows"

// Available returns the bytes the calling user may still write under dir.
func Available(dir string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	var free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, nil, nil); err != nil {
		return 0, err
	}
	return free, nil
}
