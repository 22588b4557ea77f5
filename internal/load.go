package fxtwitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/perpetuallyhorni/fxthreads/internal/fs"
)

var (
	// ErrDiskSpace is returned when the destination filesystem is below the free space threshold.
	ErrDiskSpace = errors.New("insufficient disk space")

	// MinRequiredDiskSpace is the default free space threshold checked before each download.
	MinRequiredDiskSpace uint64 = 16 << 20
	// DefaultDownloadTimeout bounds a single image download.
	DefaultDownloadTimeout = 30 * time.Second
)

const (
	// defaultImageExt is appended to filenames without an extension.
	defaultImageExt = ".jpg"
	// partSuffix marks a download in progress.
	partSuffix = ".part"
)

// FilenameFromURL derives a local filename from the final path segment of an image URL.
func FilenameFromURL(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	} else {
		name = path.Base(rawURL)
	}
	name, _, _ = strings.Cut(name, "?")
	if name == "" || name == "." || name == "/" || name == ".." {
		name = "image"
	}
	if !strings.Contains(name, ".") {
		name += defaultImageExt
	}
	return name
}

// ImagePath returns the destination of an image inside a thread directory.
// The tweet ID prefix keeps equal filenames from different tweets apart.
func ImagePath(threadDir, tweetID, rawURL string) string {
	return filepath.Join(threadDir, tweetID+"_"+FilenameFromURL(rawURL))
}

// Exists reports whether a regular file is present at filename.
func Exists(filename string) (bool, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// DownloadOpt holds the options for a Downloader.
type DownloadOpt struct {
	Transport    http.RoundTripper // Transport defaults to http.DefaultTransport.
	Timeout      time.Duration     // Timeout bounds one download, defaults to DefaultDownloadTimeout.
	UserAgent    string            // UserAgent is sent with every request when set.
	MinFreeSpace uint64            // MinFreeSpace defaults to MinRequiredDiskSpace.
}

// Defaults sets default values for the DownloadOpt.
func (opt *DownloadOpt) Defaults() *DownloadOpt {
	ret := opt
	if ret == nil {
		ret = &DownloadOpt{}
	}
	if ret.Transport == nil {
		ret.Transport = http.DefaultTransport
	}
	if ret.Timeout <= 0 {
		ret.Timeout = DefaultDownloadTimeout
	}
	if ret.MinFreeSpace == 0 {
		ret.MinFreeSpace = MinRequiredDiskSpace
	}
	return ret
}

// Downloader streams images to disk.
type Downloader struct {
	client       *grab.Client
	minFreeSpace uint64
}

// NewDownloader creates a new Downloader.
func NewDownloader(opt *DownloadOpt) *Downloader {
	opt = opt.Defaults()
	return &Downloader{
		client: &grab.Client{
			HTTPClient: &http.Client{Transport: opt.Transport, Timeout: opt.Timeout},
			UserAgent:  opt.UserAgent,
		},
		minFreeSpace: opt.MinFreeSpace,
	}
}

// checkSpace fails with ErrDiskSpace when dir has less than the configured free space.
func (d *Downloader) checkSpace(dir string) error {
	available, err := fs.Available(dir)
	if err != nil {
		if errors.Is(err, fs.ErrUnsupportedOS) {
			return nil
		}
		return fmt.Errorf("failed to check free space in %s: %w", dir, err)
	}
	if available < d.minFreeSpace {
		return fmt.Errorf("%w: %d bytes free in %s, need %d", ErrDiskSpace, available, dir, d.minFreeSpace)
	}
	return nil
}

// Download streams rawURL to dest, creating parent directories. The body is written to
// dest+".part" and renamed once complete, so an existing dest is always a whole file.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	dir := filepath.Dir(dest)
	// #nosec G301
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := d.checkSpace(dir); err != nil {
		return err
	}

	part := dest + partSuffix
	if err := os.Remove(part); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale partial download %s: %w", part, err)
	}
	req, err := grab.NewRequest(part, rawURL)
	if err != nil {
		return err
	}
	req.NoResume = true
	req = req.WithContext(ctx)
	if resp := d.client.Do(req); resp.Err() != nil {
		_ = os.Remove(part)
		return fmt.Errorf("failed to download %s: %w", rawURL, resp.Err())
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("failed to move %s into place: %w", part, err)
	}
	return nil
}
