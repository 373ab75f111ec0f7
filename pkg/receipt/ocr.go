package receipt

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"finapi/pkg/logx"
)

// Recognizer turns an image file into text.
type Recognizer interface {
	Text(path string) (string, error)
}

// Tesseract recognizes text with the tesseract library.
type Tesseract struct {
	Language string
}

func (t Tesseract) Text(path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("tesseract language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

// Scanner runs the OCR passes over a receipt image.
type Scanner struct {
	rec Recognizer
	log *logx.Logger
}

func NewScanner(rec Recognizer, log *logx.Logger) *Scanner {
	if log == nil {
		log = logx.Nop()
	}
	return &Scanner{rec: rec, log: log.WithComponent(logx.ComponentReceipts)}
}

// Scan reads the image at path twice, once contrast-enhanced and once
// binarized, and extracts an amount from the combined text.
func (s *Scanner) Scan(ctx context.Context, path string) (Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("open image: %w", err)
	}
	base := prepare(img)
	passes := []image.Image{base, adaptiveThreshold(base, 31, 10)}

	var texts []string
	for i, p := range passes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := s.recognize(p)
		if err != nil {
			s.log.Err(ctx, "ocr pass", err, "pass", i, "path", path)
			continue
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return Result{}, fmt.Errorf("ocr: every pass failed for %s", path)
	}
	res, err := Extract(strings.Join(texts, "\n"))
	if err != nil {
		s.log.DebugContext(ctx, "no amount in receipt", "path", path, "text", snippet(res.Text, 160))
		return res, err
	}
	s.log.DebugContext(ctx, "receipt amount", "path", path, "raw", res.Raw, "amount", res.Amount.String(), "confidence", res.Confidence)
	return res, nil
}

func (s *Scanner) recognize(img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "receipt-*.png")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(name)
	if err := imaging.Save(img, name); err != nil {
		return "", fmt.Errorf("save pass image: %w", err)
	}
	return s.rec.Text(name)
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
