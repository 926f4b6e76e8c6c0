// Package validation checks and decodes user input before it reaches the pipelines.
package validation

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
)

const (
	MaxFieldLength    = 100
	MaxQuestionLength = 1000
	DefaultMaxPDF     = 20 << 20
	DefaultMaxImage   = 8 << 20
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// letters of any script, digits and the punctuation found on medicine packaging
	fieldRegex = regexp.MustCompile(`^[\p{L}\p{M}0-9\s\-\.\+'/,%()&]+$`)

	dataURLRegex = regexp.MustCompile(`^data:([a-zA-Z0-9.+/-]+);base64,`)

	// Dangerous patterns as strings, strings.Contains is faster than regex for these
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$regex:",
	}

	// markupPatterns apply to free text questions, where punctuation is legitimate
	markupPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=", "<iframe",
	}

	imageTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	}
)

// Compile-time check to ensure InputValidator implements Validator
var _ interfaces.Validator = (*InputValidator)(nil)

// InputValidator implements interfaces.Validator
type InputValidator struct {
	maxPDFBytes   int
	maxImageBytes int
}

// NewInputValidator creates a validator; non-positive limits use the defaults
func NewInputValidator(maxPDFBytes, maxImageBytes int) *InputValidator {
	if maxPDFBytes <= 0 {
		maxPDFBytes = DefaultMaxPDF
	}
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImage
	}
	return &InputValidator{maxPDFBytes: maxPDFBytes, maxImageBytes: maxImageBytes}
}

// ValidateIdentity trims the identity in place and checks each field.
// At least a name or an active substance is required to search.
func (v *InputValidator) ValidateIdentity(identity *entities.MedicineIdentity) error {
	if identity == nil {
		return fmt.Errorf("identity is nil")
	}

	identity.Name = strings.TrimSpace(identity.Name)
	identity.Brand = strings.TrimSpace(identity.Brand)
	identity.ActiveSubstance = strings.TrimSpace(identity.ActiveSubstance)
	identity.Dosage = strings.TrimSpace(identity.Dosage)

	if identity.Name == "" && identity.ActiveSubstance == "" {
		return fmt.Errorf("name or activeSubstance is required")
	}

	fields := []struct {
		name   string
		value  string
		strict bool
	}{
		{"name", identity.Name, true},
		{"activeSubstance", identity.ActiveSubstance, true},
		{"dosage", identity.Dosage, true},
		{"brand", identity.Brand, false},
	}

	for _, f := range fields {
		if err := v.validateField(f.value, f.strict); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func (v *InputValidator) validateField(value string, strict bool) error {
	if value == "" {
		return nil
	}

	if utf8.RuneCountInString(value) > MaxFieldLength {
		return fmt.Errorf("too long: maximum %d characters", MaxFieldLength)
	}

	if strict {
		lower := strings.ToLower(value)
		for _, pattern := range dangerousPatterns {
			if strings.Contains(lower, pattern) {
				return fmt.Errorf("contains potentially dangerous content")
			}
		}
	}

	if !fieldRegex.MatchString(value) {
		return fmt.Errorf("contains invalid characters")
	}

	if hasExcessiveRepetition(value) {
		return fmt.Errorf("contains excessive character repetition")
	}
	return nil
}

// ValidateQuestion checks a free text question
func (v *InputValidator) ValidateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return fmt.Errorf("question cannot be empty")
	}

	if !utf8.ValidString(trimmed) {
		return fmt.Errorf("question is not valid UTF-8")
	}

	if utf8.RuneCountInString(trimmed) > MaxQuestionLength {
		return fmt.Errorf("question too long: maximum %d characters", MaxQuestionLength)
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range markupPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("question contains potentially dangerous content")
		}
	}

	if hasExcessiveRepetition(trimmed) {
		return fmt.Errorf("question contains excessive character repetition")
	}
	return nil
}

// DecodePDF decodes a base64 (optionally data URL) PDF and checks its signature and size
func (v *InputValidator) DecodePDF(encoded string) ([]byte, error) {
	_, payload := splitDataURL(encoded)

	data, err := decodeBase64(payload, v.maxPDFBytes)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}

	if !strings.HasPrefix(string(data[:min(len(data), 5)]), "%PDF-") {
		return nil, fmt.Errorf("pdf: content is not a PDF document")
	}
	return data, nil
}

// DecodeImage accepts a data URL or raw base64 JPEG, PNG or WebP and returns a data URL
// with the detected media type
func (v *InputValidator) DecodeImage(encoded string) (string, error) {
	_, payload := splitDataURL(encoded)

	data, err := decodeBase64(payload, v.maxImageBytes)
	if err != nil {
		return "", fmt.Errorf("image: %w", err)
	}

	contentType := http.DetectContentType(data)
	if !imageTypes[contentType] {
		return "", fmt.Errorf("image: unsupported content type %s", contentType)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func splitDataURL(encoded string) (mediaType, payload string) {
	encoded = strings.TrimSpace(encoded)
	if m := dataURLRegex.FindStringSubmatch(encoded); m != nil {
		return m[1], encoded[len(m[0]):]
	}
	return "", encoded
}

func decodeBase64(payload string, limit int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}

	// base64 grows data by 4/3, reject before decoding
	if base64.StdEncoding.DecodedLen(len(payload)) > limit+3 {
		return nil, fmt.Errorf("content too large: maximum %d bytes", limit)
	}

	payload = strings.TrimRight(payload, "=")
	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 content")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("content cannot be empty")
	}
	if len(data) > limit {
		return nil, fmt.Errorf("content too large: maximum %d bytes", limit)
	}
	return data, nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
