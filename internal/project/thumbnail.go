package project

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	thumbnailOpenTag  = "<thumbnail>data:image/png;base64,"
	thumbnailCloseTag = "</thumbnail>"
)

// GetThumbnail implements spec.md §4.5's get_thumbnail: pick the most
// recently updated role, extract its embedded base64 PNG, and (when an
// aspect ratio is requested) pad it to that ratio by centering rather than
// cropping, re-encoding as PNG.
func (s *Service) GetThumbnail(ctx context.Context, vp capability.ViewProjectMetadata, aspectRatio *float64) ([]byte, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": vp.Metadata.ID})
	if err != nil {
		return nil, err
	}

	roleMD, ok := latestRole(md.Roles)
	if !ok {
		return nil, apperr.ErrThumbnailNotFound
	}

	code, err := s.blobs.Get(ctx, roleMD.CodeKey)
	if err != nil {
		return nil, apperr.ErrThumbnailNotFound
	}

	img, err := extractThumbnail(string(code))
	if err != nil {
		return nil, err
	}

	if aspectRatio != nil {
		img = padToAspectRatio(img, *aspectRatio)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrThumbnailEncode, err)
	}
	return buf.Bytes(), nil
}

func latestRole(roles map[string]store.RoleMetadata) (store.RoleMetadata, bool) {
	var best store.RoleMetadata
	found := false
	for _, r := range roles {
		if !found || r.Updated.After(best.Updated) {
			best = r
			found = true
		}
	}
	return best, found
}

func extractThumbnail(code string) (image.Image, error) {
	start := strings.Index(code, thumbnailOpenTag)
	if start == -1 {
		return nil, apperr.ErrThumbnailNotFound
	}
	rest := code[start+len(thumbnailOpenTag):]
	end := strings.Index(rest, thumbnailCloseTag)
	if end == -1 {
		return nil, apperr.ErrThumbnailNotFound
	}

	data, err := base64.StdEncoding.DecodeString(rest[:end])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBase64Decode, err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrThumbnailDecode, err)
	}
	return img, nil
}

// padToAspectRatio centers img in a transparent canvas sized to aspectRatio,
// never cropping (spec.md §4.5's explicit "pad, not crop" requirement).
func padToAspectRatio(img image.Image, aspectRatio float64) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	current := float64(width) / float64(height)

	resizedWidth, resizedHeight := width, height
	if current < aspectRatio {
		resizedWidth = int(aspectRatio * float64(height))
	} else {
		resizedHeight = int(float64(width) / aspectRatio)
	}

	leftOffset := (resizedWidth - width) / 2
	topOffset := (resizedHeight - height) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, resizedWidth, resizedHeight))
	dstRect := image.Rect(leftOffset, topOffset, leftOffset+width, topOffset+height)
	draw.Draw(canvas, dstRect, img, bounds.Min, draw.Src)
	return canvas
}
