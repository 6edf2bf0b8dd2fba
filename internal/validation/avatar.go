package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxAvatarSize is 2 MiB.
const DefaultMaxAvatarSize int64 = 2 << 20

var (
	allowedAvatarTypes      = []string{"image/jpeg", "image/png", "image/gif"}
	allowedAvatarExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
)

// File describes an avatar candidate.
type File struct {
	Name        string
	ContentType string
	Size        int64
}

// AvatarFromPath stats a local file and sniffs its content type.
func AvatarFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat avatar: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", ErrInvalid, path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to detect avatar type: %w", err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: mt.String(),
		Size:        info.Size(),
	}, nil
}

// ValidateAvatar accepts JPEG, PNG and GIF images no larger than maxSize.
// maxSize <= 0 selects DefaultMaxAvatarSize.
func ValidateAvatar(f *File, maxSize int64) Result {
	if maxSize <= 0 {
		maxSize = DefaultMaxAvatarSize
	}
	if f == nil || f.Name == "" {
		return invalid("Please choose a file")
	}
	if !IsValidAvatarType(*f) {
		return invalid("Please choose a valid image file (JPG, PNG or GIF)")
	}
	if f.Size > maxSize {
		return invalid(fmt.Sprintf("File size cannot exceed %s", FormatFileSize(maxSize)))
	}
	return ok()
}

// IsValidAvatarType checks the MIME type first and falls back to the file extension.
func IsValidAvatarType(f File) bool {
	mediaType, _, _ := strings.Cut(f.ContentType, ";")
	if slices.Contains(allowedAvatarTypes, strings.TrimSpace(strings.ToLower(mediaType))) {
		return true
	}
	return slices.Contains(allowedAvatarExtensions, strings.ToLower(filepath.Ext(f.Name)))
}

// FormatFileSize renders a byte count with binary units, e.g. "1.5 MiB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
