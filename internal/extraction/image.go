package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

// SourceImage is one receipt image as handed to the extractor: the raw
// bytes plus the storage path that encodes the uploading employee's folder.
type SourceImage struct {
	Path        string
	Data        []byte
	ContentType string
}

// passes holds the two OCR inputs derived from one receipt: the full image
// and its lower half, both PNG-encoded.
type passes struct {
	full []byte
	half []byte
}

// preparePasses decodes the receipt and produces the full and lower-half
// PNG passes. The half pass exists because the total prints in the bottom
// half of the receipt, which keeps header digits out of the amount search.
func preparePasses(data []byte, contentType string, maxEdge int) (*passes, error) {
	img, err := decodeReceipt(data, contentType, maxEdge)
	if err != nil {
		return nil, err
	}

	full, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encoding full pass: %w", err)
	}

	half, err := encodePNG(lowerHalf(img))
	if err != nil {
		return nil, fmt.Errorf("encoding half pass: %w", err)
	}

	return &passes{full: full, half: half}, nil
}

// decodeReceipt decodes any supported receipt format into an image. PDFs
// render their first page; HEIC uses a dedicated decoder and is downscaled
// to maxEdge on its longest side, since phone originals at full resolution
// run the decoder out of memory.
func decodeReceipt(data []byte, contentType string, maxEdge int) (image.Image, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" {
		return pdfToImage(data)
	}

	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return downscale(img, maxEdge), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// pdfToImage renders the first page of a PDF. Receipts are single page.
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// downscale resizes the image so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already within bounds pass through.
func downscale(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = maxEdge
		dh = h * maxEdge / w
	} else {
		dh = maxEdge
		dw = w * maxEdge / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// lowerHalf returns the part of the image below the vertical midpoint.
func lowerHalf(img image.Image) image.Image {
	bounds := img.Bounds()
	midY := bounds.Min.Y + bounds.Dy()/2

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Max.Y-midY))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(bounds.Min.X, midY), draw.Src)
	return dst
}

// encodePNG encodes an image as PNG.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
