// Package ocr turns raw badge-scan text into structured contact fields
// using regex heuristics. The OCR provider itself is optional and sits
// behind the TextSource interface.
package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

// Extraction holds the fields recovered from a badge scan.
type Extraction struct {
	FirstName  string  `json:"first_name,omitempty"`
	LastName   string  `json:"last_name,omitempty"`
	Company    string  `json:"company,omitempty"`
	Title      string  `json:"title,omitempty"`
	Email      string  `json:"email,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Confidence float64 `json:"confidence"`
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

var titleKeywords = []string{
	"VP", "Chief", "Director", "Manager", "Head", "President",
	"Engineer", "Scientist", "Officer",
}

var companySuffixes = []string{
	"Inc", "LLC", "Ltd", "Corp", "GmbH", "Pharma", "Labs",
}

// ExtractFields applies the field heuristics to raw OCR text.
func ExtractFields(rawText string) Extraction {
	var extraction Extraction

	if match := emailPattern.FindString(rawText); match != "" {
		extraction.Email = match
	}
	if match := phonePattern.FindString(rawText); match != "" {
		extraction.Phone = strings.TrimSpace(match)
	}

	lines := nonEmptyLines(rawText)
	for _, line := range lines {
		if extraction.Title == "" && looksLikeTitle(line) {
			extraction.Title = line
		}
		if extraction.Company == "" && looksLikeCompany(line) {
			extraction.Company = line
		}
	}
	for _, line := range lines {
		if line == extraction.Company || line == extraction.Title {
			continue
		}
		if first, last, ok := splitName(line); ok {
			extraction.FirstName = first
			extraction.LastName = last
			break
		}
	}

	extraction.Confidence = confidence(extraction)
	return extraction
}

func nonEmptyLines(rawText string) []string {
	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func looksLikeTitle(line string) bool {
	for _, keyword := range titleKeywords {
		for _, word := range strings.FieldsFunc(line, func(r rune) bool {
			return !unicode.IsLetter(r)
		}) {
			if word == keyword {
				return true
			}
		}
	}
	return false
}

func looksLikeCompany(line string) bool {
	for _, suffix := range companySuffixes {
		for _, word := range strings.FieldsFunc(line, func(r rune) bool {
			return !unicode.IsLetter(r)
		}) {
			if word == suffix {
				return true
			}
		}
	}
	return false
}

// splitName accepts a line of two or three capitalized words with no
// digits or symbols, treating the first word as the given name and the
// rest as the family name.
func splitName(line string) (first, last string, ok bool) {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 3 {
		return "", "", false
	}
	for _, word := range words {
		runes := []rune(word)
		if !unicode.IsUpper(runes[0]) {
			return "", "", false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' {
				return "", "", false
			}
		}
	}
	return words[0], strings.Join(words[1:], " "), true
}

func confidence(extraction Extraction) float64 {
	found := 0.0
	total := 5.0
	if extraction.FirstName != "" {
		found++
	}
	if extraction.Email != "" {
		found++
	}
	if extraction.Phone != "" {
		found++
	}
	if extraction.Company != "" {
		found++
	}
	if extraction.Title != "" {
		found++
	}
	return found / total
}
