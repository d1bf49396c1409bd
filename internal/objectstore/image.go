// Package objectstore uploads contributor photos to S3-compatible storage.
package objectstore

import (
	"net/http"

	dErrors "openmediamap/pkg/domain-errors"
)

// ImageType is an accepted image format.
type ImageType struct {
	MIME string
	Ext  string
}

var allowedImages = map[string]ImageType{
	"image/jpeg": {MIME: "image/jpeg", Ext: "jpg"},
	"image/png":  {MIME: "image/png", Ext: "png"},
	"image/webp": {MIME: "image/webp", Ext: "webp"},
	"image/gif":  {MIME: "image/gif", Ext: "gif"},
}

// DetectImage identifies the image format from the leading bytes of data.
// The client-declared content type is never consulted.
func DetectImage(data []byte) (ImageType, error) {
	if len(data) == 0 {
		return ImageType{}, dErrors.New(dErrors.CodeValidation, "photo is empty")
	}
	sniffed := http.DetectContentType(data)
	t, ok := allowedImages[sniffed]
	if !ok {
		return ImageType{}, dErrors.New(dErrors.CodeValidation, "Invalid file type. Only images are allowed.")
	}
	return t, nil
}
