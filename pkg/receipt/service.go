package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/logx"
	"finapi/pkg/store"
)

const (
	MaxUploadSize = 5 << 20
	ListLimit     = 100
	// suggestions below this confidence are recorded as failures
	minConfidence = 0.15
)

var allowedExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// AllowedExt reports whether name has an accepted image extension.
func AllowedExt(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// AmountScanner extracts an amount from a stored image.
type AmountScanner interface {
	Scan(ctx context.Context, path string) (Result, error)
}

type Service struct {
	store   store.Store
	scanner AmountScanner
	base    string
	log     *logx.Logger
}

func NewService(st store.Store, scanner AmountScanner, base string, log *logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{store: st, scanner: scanner, base: base, log: log.WithComponent(logx.ComponentReceipts)}
}

// Save stores an uploaded image under <base>/<user id>/ and records it.
// OCR runs before returning; when it finds nothing the receipt is kept and
// marked failed instead of returning an error.
func (s *Service) Save(ctx context.Context, userID uint, name string, r io.Reader) (*models.Receipt, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if !AllowedExt(name) {
		return nil, apperr.Field("file", "file must be a png, jpg, jpeg, gif or webp image")
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, apperr.Field("file", "file too large (max 5MB)")
	}
	if len(data) == 0 {
		return nil, apperr.Field("file", "file is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperr.Field("file", "file content is not an image")
	}

	rel := filepath.Join(strconv.FormatUint(uint64(userID), 10), uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	full := filepath.Join(s.base, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := writeFile(full, data); err != nil {
		return nil, err
	}

	rc := &models.Receipt{UserID: userID, FileName: name, StorePath: filepath.ToSlash(rel), ContentType: mt.String()}
	if err := s.store.CreateReceipt(ctx, rc); err != nil {
		_ = os.Remove(full)
		return nil, err
	}
	s.scan(ctx, rc, full)
	if err := s.store.UpdateReceipt(ctx, rc); err != nil {
		return nil, err
	}
	return rc, nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// scan fills the suggestion fields of rc from the image at path.
func (s *Service) scan(ctx context.Context, rc *models.Receipt, path string) {
	if s.scanner == nil {
		rc.Failed, rc.FailedReason = true, "ocr disabled"
		return
	}
	res, err := s.scanner.Scan(ctx, path)
	switch {
	case errors.Is(err, ErrNoAmount):
		rc.Failed, rc.FailedReason = true, ErrNoAmount.Error()
	case err != nil:
		s.log.Err(ctx, "scan receipt", err, "receipt_id", rc.ID)
		rc.Failed, rc.FailedReason = true, "ocr failed"
	case res.Confidence < minConfidence:
		rc.Failed, rc.FailedReason = true, "low confidence"
		rc.Confidence, rc.RawMatch = res.Confidence, truncate(res.Raw, 128)
	default:
		rc.SuggestedAmount = decimal.NewNullDecimal(res.Amount)
		rc.Confidence = res.Confidence
		rc.RawMatch = truncate(res.Raw, 128)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ingest stores the file at path for userID, as if uploaded.
func (s *Service) Ingest(ctx context.Context, userID uint, path string) (*models.Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.Save(ctx, userID, filepath.Base(path), f)
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Receipt, error) {
	rs, err := s.store.ListReceipts(ctx, userID, ListLimit)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []models.Receipt{}
	}
	return rs, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*models.Receipt, error) {
	return s.store.ReceiptByID(ctx, userID, id)
}

// Attach links a receipt to one of the caller's transactions.
func (s *Service) Attach(ctx context.Context, userID, id, transactionID uint) (*models.Receipt, error) {
	var out *models.Receipt
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		rc, err := tx.ReceiptByID(ctx, userID, id)
		if err != nil {
			return err
		}
		if _, err := tx.TransactionByID(ctx, userID, transactionID); err != nil {
			return err
		}
		rc.TransactionID = &transactionID
		if err := tx.UpdateReceipt(ctx, rc); err != nil {
			return err
		}
		out = rc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
