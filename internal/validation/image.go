package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// MaxAvatarSize bounds avatar uploads.
const MaxAvatarSize = 5 << 20

// avatarTypes maps accepted sniffed content types to the stored extension.
var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Image describes an upload that passed ValidateAvatar.
type Image struct {
	ContentType string
	Ext         string
	Size        int64
}

// ValidateAvatar checks an uploaded avatar's size and sniffed content type.
// The declared Content-Type header and file name are ignored. The file is
// rewound before returning.
func ValidateAvatar(file multipart.File, header *multipart.FileHeader) (Image, error) {
	if header.Size > MaxAvatarSize {
		return Image{}, fmt.Errorf("file too large: maximum size is %d MB", MaxAvatarSize/(1<<20))
	}
	if header.Size == 0 {
		return Image{}, fmt.Errorf("file is empty")
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return Image{}, fmt.Errorf("failed to read file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Image{}, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	ext, ok := avatarTypes[detected]
	if !ok {
		return Image{}, fmt.Errorf("invalid file type (detected: %s)", detected)
	}
	return Image{ContentType: detected, Ext: ext, Size: header.Size}, nil
}
