package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize is the per-file upload limit (500 MiB).
const MaxFileSize = 500 << 20

// PublicPrefix is the URL prefix under which stored files are served.
const PublicPrefix = "/uploads"

var (
	// ErrUnsupportedType is returned when the sniffed content type of an
	// upload does not match what its field allows.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when an upload exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// Kind identifies the asset type of an upload and selects its subdirectory.
type Kind string

const (
	KindVideo  Kind = "video"
	KindPoster Kind = "poster"
)

func (k Kind) dir() string {
	switch k {
	case KindVideo:
		return "videos"
	case KindPoster:
		return "posters"
	default:
		return ""
	}
}

// Store is a disk-backed upload store partitioned by asset type.
type Store struct {
	root string
}

// New creates the upload directory tree under root.
func New(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "videos"), filepath.Join(root, "posters")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Save validates and persists one uploaded file, returning its public path
// (e.g. "/uploads/videos/video-1693...-a1b2c3d4.mp4"). Nothing is written
// when the file is too large or the wrong type.
func (s *Store) Save(fh *multipart.FileHeader, kind Kind) (string, error) {
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, fh.Size)
	}

	if err := s.checkType(fh, kind); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := uniqueName(kind, fh.Filename)
	dstPath := filepath.Join(s.root, kind.dir(), name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("failed to write %s: %w", dstPath, err)
	}

	return path.Join(PublicPrefix, kind.dir(), name), nil
}

// checkType sniffs the content of the upload. The client-supplied header is
// not trusted: videos must detect as video/mp4, posters as any image type.
func (s *Store) checkType(fh *multipart.FileHeader, kind Kind) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("failed to detect content type: %w", err)
	}

	switch kind {
	case KindVideo:
		if !mtype.Is("video/mp4") {
			return fmt.Errorf("%w: only MP4 video files are allowed, got %s", ErrUnsupportedType, mtype)
		}
	case KindPoster:
		if !strings.HasPrefix(mtype.String(), "image/") {
			return fmt.Errorf("%w: only image files are allowed for posters, got %s", ErrUnsupportedType, mtype)
		}
	}
	return nil
}

// uniqueName builds a collision-resistant file name: field prefix, millisecond
// timestamp, random component, original extension.
func uniqueName(kind Kind, original string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s%s", kind, time.Now().UnixMilli(), suffix, filepath.Ext(original))
}

// Remove deletes the file behind a public path. A missing file is not an
// error; the store is best-effort about cleanup.
func (s *Store) Remove(publicPath string) error {
	diskPath, ok := s.diskPath(publicPath)
	if !ok {
		return fmt.Errorf("not an upload path: %s", publicPath)
	}
	if _, err := os.Stat(diskPath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(diskPath)
}

// Sweep removes every stored file whose public path is not in referenced.
// It closes the window left by a crash between a row mutation and its file
// cleanup, and returns the number of files removed.
func (s *Store) Sweep(referenced map[string]bool) (int, error) {
	removed := 0
	for _, kind := range []Kind{KindVideo, KindPoster} {
		entries, err := os.ReadDir(filepath.Join(s.root, kind.dir()))
		if err != nil {
			return removed, fmt.Errorf("failed to read %s dir: %w", kind.dir(), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			public := path.Join(PublicPrefix, kind.dir(), e.Name())
			if referenced[public] {
				continue
			}
			if err := os.Remove(filepath.Join(s.root, kind.dir(), e.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// diskPath maps a public "/uploads/..." path to its on-disk location,
// rejecting anything that escapes the store root.
func (s *Store) diskPath(publicPath string) (string, bool) {
	rel, ok := strings.CutPrefix(publicPath, PublicPrefix+"/")
	if !ok {
		return "", false
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", false
	}
	return filepath.Join(s.root, rel), true
}
