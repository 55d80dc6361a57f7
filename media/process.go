// Package media turns uploaded idea images into a hero image and a thumbnail and stores
// them for the lifetime of the uploading client's session.
package media

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"forgeboard/config"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty           = errors.New("file is empty")
	ErrTooLarge        = fmt.Errorf("file is larger than the %dMB limit", config.MaxFileSize/1024/1024)
	ErrUnsupportedType = errors.New("unsupported file type, only JPG, PNG, GIF and WebP are allowed")
	ErrDimensions      = fmt.Errorf("image dimensions exceed maximum (%dx%d)", config.MaxWidth, config.MaxHeight)
	ErrDecode          = errors.New("could not decode image")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
}

// Image is one encoded rendition.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Processed holds both renditions of an upload.
type Processed struct {
	Hero      Image
	Thumbnail Image
	// Hash is the hex SHA-256 of the original bytes.
	Hash string
}

// ReadUpload reads at most config.MaxFileSize bytes, failing with ErrTooLarge beyond that.
func ReadUpload(r io.Reader) ([]byte, error) {
	limited := &io.LimitedReader{R: r, N: config.MaxFileSize + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("could not read file data: %w", err)
	}
	if limited.N == 0 {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return data, nil
}

// Process validates an upload by its magic bytes and dimensions, corrects its orientation
// and re-encodes it. PNG stays PNG; everything else becomes JPEG.
func Process(data []byte) (*Processed, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > config.MaxFileSize {
		return nil, ErrTooLarge
	}
	if !allowedTypes[http.DetectContentType(data)] {
		return nil, ErrUnsupportedType
	}

	reader := bytes.NewReader(data)
	cfg, format, err := image.DecodeConfig(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width > config.MaxWidth || cfg.Height > config.MaxHeight {
		return nil, fmt.Errorf("%w: got %dx%d", ErrDimensions, cfg.Width, cfg.Height)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("could not reset reader position: %w", err)
	}

	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	hero := imaging.Fit(img, config.HeroWidth, config.HeroHeight, imaging.Lanczos)
	heroImg, err := encode(hero, format == "png")
	if err != nil {
		return nil, fmt.Errorf("failed to encode hero image: %w", err)
	}

	// Cards show a fixed 16:9 crop.
	thumb := imaging.Fill(img, config.ThumbnailWidth, config.ThumbnailHeight, imaging.Center, imaging.Lanczos)
	thumbImg, err := encode(thumb, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	sum := sha256.Sum256(data)
	return &Processed{Hero: heroImg, Thumbnail: thumbImg, Hash: hex.EncodeToString(sum[:])}, nil
}

func encode(img image.Image, png bool) (Image, error) {
	var buf bytes.Buffer
	out := Image{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	var err error
	if png {
		err = imaging.Encode(&buf, img, imaging.PNG)
		out.ContentType, out.Ext = "image/png", "png"
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(88))
		out.ContentType, out.Ext = "image/jpeg", "jpeg"
	}
	if err != nil {
		return Image{}, err
	}
	out.Data = buf.Bytes()
	return out, nil
}
