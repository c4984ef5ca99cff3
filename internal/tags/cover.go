package tags

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// MIME types for cover art
const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// ExtractEmbeddedArt reads the embedded cover art of an audio file.
// Returns nil data when the file carries no picture.
func ExtractEmbeddedArt(path string) (data []byte, mimeType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			return pic.Data, pictureMIME(pic.MIMEType, pic.Data), nil
		}
	}

	// dhowden/tag skips pictures it cannot parse; try the format libraries
	if strings.EqualFold(filepath.Ext(path), ExtFLAC) {
		if flacFile, err := parseFLAC(path); err == nil {
			if data, mimeType := flacFrontCover(flacFile); data != nil {
				return data, pictureMIME(mimeType, data), nil
			}
		}
	}

	data, err = taglib.ReadImage(path)
	if err != nil || len(data) == 0 {
		return nil, "", nil //nolint:nilerr // a file without readable art is not an error
	}
	return data, pictureMIME("", data), nil
}

// ReadImageFile reads an image file used as folder cover art.
func ReadImageFile(path string) (data []byte, mimeType string, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, pictureMIME(mimeFromExt(path), data), nil
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return mimeJPEG
	case ".png":
		return mimePNG
	}
	return ""
}

// pictureMIME returns the declared MIME type, sniffing the data when the
// declaration is missing or generic.
func pictureMIME(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	switch declared {
	case "", "image/", "image", "application/octet-stream":
		return http.DetectContentType(data)
	case "image/jpg":
		return mimeJPEG
	}
	return declared
}
