package transcoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Registered decode formats for image.Decode. JPEG is imported directly
	// for encoding; GIF, PNG and WebP sources decode through the registry.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// DefaultJPEGQuality matches the fixed output target of the pipeline.
	DefaultJPEGQuality = 50

	// OutputContentType is the MIME type of every transcoded artifact.
	OutputContentType = "image/jpeg"
)

// Transcoder converts raw image bytes into the standardized output format.
type Transcoder interface {
	Transcode(data []byte) ([]byte, error)
}

// JPEGTranscoder re-encodes any decodable source image as JPEG at a fixed
// quality. The output is deterministic for a given input.
type JPEGTranscoder struct {
	quality int
}

func NewJPEGTranscoder(quality int) *JPEGTranscoder {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &JPEGTranscoder{quality: quality}
}

func (t *JPEGTranscoder) Transcode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &TranscodeError{Kind: TranscodeDecode, Cause: fmt.Errorf("empty input")}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		kind := TranscodeDecode
		if err == image.ErrFormat {
			kind = TranscodeUnsupportedFormat
		}
		return nil, &TranscodeError{Kind: kind, Cause: err}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, &TranscodeError{Kind: TranscodeDecode, Format: format, Cause: err}
	}

	return buf.Bytes(), nil
}
