package ocr

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ScanRequest carries the badge image, either inline or by reference.
type ScanRequest struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURI    string `json:"image_uri,omitempty"`
}

// ScanResponse reports the extraction outcome. OCRAvailable is false when
// no text provider is configured; that is not a failure.
type ScanResponse struct {
	Success      bool       `json:"success"`
	Extracted    Extraction `json:"extracted"`
	RawText      string     `json:"raw_text"`
	OCRAvailable bool       `json:"ocr_available"`
	Error        string     `json:"error,omitempty"`
}

// TextSource recognizes text in a badge image. Implementations wrap an
// external OCR provider.
type TextSource interface {
	RecognizeText(ctx context.Context, request ScanRequest) (string, error)
}

// Scanner runs badge scans through the optional provider and the field
// heuristics.
type Scanner struct {
	source TextSource
	logger *zap.Logger
}

// NewScanner constructs a Scanner. A nil source means scans report
// ocr_available false.
func NewScanner(source TextSource, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{source: source, logger: logger}
}

// Scan recognizes and extracts contact fields from a badge image.
func (s *Scanner) Scan(ctx context.Context, request ScanRequest) ScanResponse {
	if strings.TrimSpace(request.ImageBase64) == "" && strings.TrimSpace(request.ImageURI) == "" {
		return ScanResponse{Success: false, Error: "ocr: image_base64 or image_uri required"}
	}
	if s.source == nil {
		return ScanResponse{Success: true, OCRAvailable: false}
	}

	rawText, err := s.source.RecognizeText(ctx, request)
	if err != nil {
		s.logger.Warn("text recognition failed", zap.Error(err))
		return ScanResponse{
			Success:      false,
			OCRAvailable: true,
			Error:        fmt.Sprintf("ocr: recognition failed: %v", err),
		}
	}

	return ScanResponse{
		Success:      true,
		Extracted:    ExtractFields(rawText),
		RawText:      rawText,
		OCRAvailable: true,
	}
}
