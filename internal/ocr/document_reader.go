package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DocumentReader renders uploaded receipt/invoice files into JPEG page
// images for the vision model. PDFs are rasterized page by page with mupdf;
// plain image uploads pass through re-encoded.
type DocumentReader struct {
	logger *zap.Logger
}

// NewDocumentReader creates a document reader
func NewDocumentReader(logger *zap.Logger) *DocumentReader {
	return &DocumentReader{logger: logger}
}

// ReadPages returns the document's pages as JPEG images
func (r *DocumentReader) ReadPages(path string) ([][]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("document not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return r.readPDF(path)
	case ".jpg", ".jpeg", ".png":
		page, err := r.readImage(path, ext)
		if err != nil {
			return nil, err
		}
		return [][]byte{page}, nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", ext)
	}
}

func (r *DocumentReader) readPDF(path string) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages [][]byte
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to rasterize page",
				zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		encoded, err := encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page",
				zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		pages = append(pages, encoded)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages rendered from %s", path)
	}
	return pages, nil
}

func (r *DocumentReader) readImage(path, ext string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var img image.Image
	switch ext {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	case ".png":
		img, err = png.Decode(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
