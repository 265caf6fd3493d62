package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractFieldsBadgeBlock(t *testing.T) {
	raw := "Jane Doe\njane.doe@example.com\nVP, Research\nAcme Pharma Inc."
	extraction := ExtractFields(raw)

	if extraction.FirstName != "Jane" {
		t.Fatalf("unexpected first name %q", extraction.FirstName)
	}
	if extraction.LastName != "Doe" {
		t.Fatalf("unexpected last name %q", extraction.LastName)
	}
	if extraction.Email != "jane.doe@example.com" {
		t.Fatalf("unexpected email %q", extraction.Email)
	}
	if extraction.Title == "" {
		t.Fatalf("expected a recognized title")
	}
	if !strings.Contains(extraction.Title, "VP") {
		t.Fatalf("unexpected title %q", extraction.Title)
	}
	if extraction.Company != "Acme Pharma Inc." {
		t.Fatalf("unexpected company %q", extraction.Company)
	}
}

func TestExtractFieldsPhone(t *testing.T) {
	raw := "Sam Lee\n+1 (415) 555-0137\nHead of Partnerships"
	extraction := ExtractFields(raw)

	if extraction.Phone == "" {
		t.Fatalf("expected a phone number")
	}
	if extraction.FirstName != "Sam" || extraction.LastName != "Lee" {
		t.Fatalf("unexpected name %q %q", extraction.FirstName, extraction.LastName)
	}
	if extraction.Title != "Head of Partnerships" {
		t.Fatalf("unexpected title %q", extraction.Title)
	}
}

func TestExtractFieldsEmptyInput(t *testing.T) {
	extraction := ExtractFields("")
	if extraction.FirstName != "" || extraction.Email != "" || extraction.Confidence != 0 {
		t.Fatalf("expected empty extraction, got %#v", extraction)
	}
}

func TestExtractFieldsDoesNotMistakeCompanyForName(t *testing.T) {
	raw := "Acme Labs\nMorgan Reyes\nStaff Engineer"
	extraction := ExtractFields(raw)

	if extraction.Company != "Acme Labs" {
		t.Fatalf("unexpected company %q", extraction.Company)
	}
	if extraction.FirstName != "Morgan" || extraction.LastName != "Reyes" {
		t.Fatalf("unexpected name %q %q", extraction.FirstName, extraction.LastName)
	}
}

type staticTextSource struct {
	text string
	err  error
}

func (s *staticTextSource) RecognizeText(_ context.Context, _ ScanRequest) (string, error) {
	return s.text, s.err
}

func TestScanWithoutProviderReportsUnavailable(t *testing.T) {
	scanner := NewScanner(nil, nil)

	response := scanner.Scan(context.Background(), ScanRequest{ImageBase64: "aGVsbG8="})
	if !response.Success {
		t.Fatalf("missing provider must not be a failure, got %q", response.Error)
	}
	if response.OCRAvailable {
		t.Fatalf("expected ocr_available false")
	}
}

func TestScanRequiresAnImage(t *testing.T) {
	scanner := NewScanner(&staticTextSource{text: "Jane Doe"}, nil)

	response := scanner.Scan(context.Background(), ScanRequest{})
	if response.Success {
		t.Fatalf("expected failure without image input")
	}
}

func TestScanExtractsFromRecognizedText(t *testing.T) {
	scanner := NewScanner(&staticTextSource{
		text: "Jane Doe\njane.doe@example.com\nVP, Research\nAcme Pharma Inc.",
	}, nil)

	response := scanner.Scan(context.Background(), ScanRequest{ImageURI: "https://example.com/badge.jpg"})
	if !response.Success || !response.OCRAvailable {
		t.Fatalf("unexpected response %#v", response)
	}
	if response.Extracted.FirstName != "Jane" {
		t.Fatalf("unexpected extraction %#v", response.Extracted)
	}
	if response.RawText == "" {
		t.Fatalf("expected raw text echoed back")
	}
}

func TestScanReportsRecognitionFailure(t *testing.T) {
	scanner := NewScanner(&staticTextSource{err: errors.New("provider down")}, nil)

	response := scanner.Scan(context.Background(), ScanRequest{ImageBase64: "aGVsbG8="})
	if response.Success {
		t.Fatalf("expected failure when recognition errors")
	}
	if !response.OCRAvailable {
		t.Fatalf("provider exists, ocr_available must stay true")
	}
}
