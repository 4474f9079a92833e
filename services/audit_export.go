// services/audit_export.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportBatchSize = 500

var codesCSVHeader = []string{"code", "telegram_uid", "telegram_name", "task_version", "coins", "used", "used_by", "used_at", "created_at"}

// Uploader stores an object and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ExportService writes the promo code ledger as CSV.
type ExportService struct {
	DB       *gorm.DB
	Uploader Uploader
	Log      *zap.Logger
}

// WriteCodesCSV streams every promo code in code order and returns the row count.
func (s *ExportService) WriteCodesCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(codesCSVHeader); err != nil {
		return 0, err
	}

	rows := 0
	var batch []models.PromoCode
	res := s.DB.WithContext(ctx).
		FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
			for _, p := range batch {
				if err := cw.Write(codeRecord(p)); err != nil {
					return err
				}
				rows++
			}
			return nil
		})
	if res.Error != nil {
		return rows, persistence("export codes", res.Error)
	}
	cw.Flush()
	return rows, cw.Error()
}

func codeRecord(p models.PromoCode) []string {
	usedBy, usedAt := "", ""
	if p.UsedBy != nil {
		usedBy = *p.UsedBy
	}
	if p.UsedAt != nil {
		usedAt = p.UsedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		p.Code,
		p.TelegramUID,
		p.TelegramName,
		strconv.Itoa(p.TaskVersion),
		strconv.Itoa(p.Coins),
		strconv.FormatBool(p.Used),
		usedBy,
		usedAt,
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ExportCodesKey is the object key of the export taken at now.
func ExportCodesKey(now time.Time) string {
	return fmt.Sprintf("audit/promo_codes/%s.csv", now.UTC().Format("2006-01-02T150405Z"))
}

// UploadCodesCSV exports the ledger and uploads it. Returns the object URL.
func (s *ExportService) UploadCodesCSV(ctx context.Context, now time.Time) (string, int, error) {
	if s.Uploader == nil {
		return "", 0, fmt.Errorf("export upload: object storage not configured")
	}
	var buf bytes.Buffer
	rows, err := s.WriteCodesCSV(ctx, &buf)
	if err != nil {
		return "", 0, err
	}
	url, err := s.Uploader.Upload(ctx, ExportCodesKey(now), "text/csv", buf.Bytes())
	if err != nil {
		return "", rows, err
	}
	s.Log.Info("[EXPORT] promo codes uploaded", zap.String("url", url), zap.Int("rows", rows))
	return url, rows, nil
}
