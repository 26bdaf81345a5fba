package face

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"faceattend/internal/domain"
)

// maxSide is the longest edge a frame keeps before inference. Webcam
// captures arrive at arbitrary resolutions; the embedder does not benefit
// from anything larger.
const maxSide = 512

const dataURLPrefix = "data:image/"

// DecodeDataURL validates and decodes a browser-captured frame. The input
// must be a base64 data URL with an image media type and the payload must
// decode as a supported raster format; anything else is rejected before it
// can reach the matching pipeline.
func DecodeDataURL(dataURL string) (image.Image, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return nil, domain.E(domain.KindValidation, "image must be a data:image/... URL")
	}
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 {
		return nil, domain.E(domain.KindValidation, "image data URL must be base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(";base64,"):])
	if err != nil {
		return nil, domain.Wrap(domain.KindValidation, "invalid base64 image payload", err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.Wrap(domain.KindValidation, "unsupported or corrupt image", err)
	}
	return normalize(img), nil
}

// normalize downscales oversized frames, preserving aspect ratio.
func normalize(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// encodePNG re-encodes a frame for transport to the face service.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
