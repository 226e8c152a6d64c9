package security

import (
	"fmt"
	"html"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sumandas0/catalog/pkg/utils"
)

type SanitizerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxStringLength int  `mapstructure:"max_string_length"`
	AllowHTML       bool `mapstructure:"allow_html"`
}

var allowedSchemes = []string{"http", "https", "s3", "gs"}

// InputSanitizer cleans free text before it is stored. Descriptions keep safe
// markup when AllowHTML is set; display names and task text never do.
// Sanitizing an already sanitized value returns it unchanged, so repeated
// writes of the same input never show up as a change.
type InputSanitizer struct {
	config      SanitizerConfig
	richPolicy  *bluemonday.Policy
	plainPolicy *bluemonday.Policy
}

func NewInputSanitizer(config SanitizerConfig) *InputSanitizer {
	return &InputSanitizer{
		config:      config,
		richPolicy:  bluemonday.UGCPolicy(),
		plainPolicy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText strips every tag and leaves plain text.
func (is *InputSanitizer) SanitizeText(field, input string) (string, error) {
	if !is.config.Enabled || input == "" {
		return input, nil
	}
	cleaned := normalize(input)
	// Unescaping can surface markup that was entity-encoded in the input, so
	// repeat until the text is stable.
	for range 4 {
		next := strings.TrimSpace(html.UnescapeString(is.plainPolicy.Sanitize(cleaned)))
		if next == cleaned {
			break
		}
		cleaned = next
	}
	return is.checkLength(field, cleaned)
}

// SanitizeDescription keeps user generated content markup when allowed.
func (is *InputSanitizer) SanitizeDescription(input string) (string, error) {
	if !is.config.Enabled || input == "" {
		return input, nil
	}
	if !is.config.AllowHTML {
		return is.SanitizeText("description", input)
	}
	cleaned := is.richPolicy.Sanitize(normalize(input))
	return is.checkLength("description", strings.TrimSpace(cleaned))
}

// SanitizeURL rejects schemes that could execute in a browser.
func (is *InputSanitizer) SanitizeURL(field, rawURL string) (string, error) {
	if !is.config.Enabled || rawURL == "" {
		return rawURL, nil
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", invalid(field, fmt.Sprintf("invalid URL: %v", err))
	}
	if !slices.Contains(allowedSchemes, strings.ToLower(parsed.Scheme)) {
		return "", invalid(field, "disallowed URL scheme: "+parsed.Scheme)
	}
	return parsed.String(), nil
}

func (is *InputSanitizer) IsEnabled() bool {
	return is.config.Enabled
}

func (is *InputSanitizer) checkLength(field, value string) (string, error) {
	if is.config.MaxStringLength > 0 && utf8.RuneCountInString(value) > is.config.MaxStringLength {
		return "", invalid(field, fmt.Sprintf("exceeds maximum length of %d", is.config.MaxStringLength))
	}
	return value, nil
}

func normalize(input string) string {
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return strings.ReplaceAll(input, "\x00", "")
}

func invalid(field, message string) error {
	return utils.NewAppError(utils.CodeValidation, field+": "+message, utils.ErrValidation).
		WithDetail("field", field)
}
