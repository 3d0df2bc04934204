package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// CapturedImage is one still image as an in-memory encoded payload, the only
// thing the capture stage hands to the extraction client.
type CapturedImage struct {
	MediaType string // e.g. "image/jpeg"
	Data      string // base64, no data-URI prefix
}

// DataURI renders the image back to the wire form the UI posts.
func (img CapturedImage) DataURI() string {
	return "data:" + img.MediaType + ";base64," + img.Data
}

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// CaptureFromFile validates raw uploaded bytes and encodes them. The media
// type is sniffed from content, not taken from the file name.
func CaptureFromFile(name string, data []byte, maxBytes int) (CapturedImage, error) {
	if len(data) == 0 {
		return CapturedImage{}, &CaptureError{Reason: fmt.Sprintf("file %q is empty", name)}
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return CapturedImage{}, &CaptureError{Reason: fmt.Sprintf("file %q exceeds %d bytes", name, maxBytes)}
	}
	mediaType := http.DetectContentType(data)
	if !supportedImageTypes[mediaType] {
		return CapturedImage{}, &CaptureError{Reason: fmt.Sprintf("file %q is not a supported image (detected %s)", name, mediaType)}
	}
	return CapturedImage{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ParseDataURI accepts a "data:image/...;base64,..." URI, the form produced
// by the camera snapshot and file-reader flows in the UI.
func ParseDataURI(uri string, maxBytes int) (CapturedImage, error) {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return CapturedImage{}, &CaptureError{Reason: "not a data URI"}
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return CapturedImage{}, &CaptureError{Reason: "data URI has no payload"}
	}
	mediaType, encoding, _ := strings.Cut(meta, ";")
	mediaType = strings.TrimSpace(mediaType)
	if encoding != "base64" {
		return CapturedImage{}, &CaptureError{Reason: "data URI is not base64-encoded"}
	}
	if !supportedImageTypes[mediaType] {
		return CapturedImage{}, &CaptureError{Reason: fmt.Sprintf("unsupported media type %q", mediaType)}
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return CapturedImage{}, &CaptureError{Reason: "invalid base64 payload", Err: err}
	}
	if len(decoded) == 0 {
		return CapturedImage{}, &CaptureError{Reason: "empty image payload"}
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return CapturedImage{}, &CaptureError{Reason: fmt.Sprintf("image exceeds %d bytes", maxBytes)}
	}
	return CapturedImage{MediaType: mediaType, Data: payload}, nil
}
