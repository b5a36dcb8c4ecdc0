package cleanup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpace   = regexp.MustCompile(`\s+`)
	edgePunct    = regexp.MustCompile(`^[\s.,;:|_\-]+|[\s.,;:|_\-]+$`)
	decimalComma = regexp.MustCompile(`(\d),(\d)`)
)

// ProcessingNodes contains reusable text processing methods.
// Each node is a no-op unless its flag is set in the config.
type ProcessingNodes struct {
	config *CleanerConfig
}

// NewProcessingNodes creates a new ProcessingNodes with the given config
func NewProcessingNodes(config *CleanerConfig) *ProcessingNodes {
	return &ProcessingNodes{config: config}
}

// StripOCRArtifacts removes table-border glyphs such as "| "
func (p *ProcessingNodes) StripOCRArtifacts(text string) string {
	if !p.config.StripOCRArtifacts {
		return text
	}
	for _, artifact := range p.config.Artifacts {
		text = strings.ReplaceAll(text, artifact, "")
	}
	return text
}

// JoinLines turns a multi-line zone into a single line
func (p *ProcessingNodes) JoinLines(text string) string {
	if !p.config.JoinLines {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", " ")
}

// FoldAccents strips combining marks so "février" matches "fevrier"
func (p *ProcessingNodes) FoldAccents(text string) string {
	if !p.config.FoldAccents {
		return text
	}
	return FoldAccents(text)
}

// MakeLowercase converts text to lowercase
func (p *ProcessingNodes) MakeLowercase(text string) string {
	if !p.config.MakeLowercase {
		return text
	}
	return strings.ToLower(text)
}

// StripCurrencyWords removes currency suffixes from amounts
func (p *ProcessingNodes) StripCurrencyWords(text string) string {
	if !p.config.StripCurrencyWords {
		return text
	}
	for _, word := range p.config.CurrencyWords {
		text = strings.ReplaceAll(text, word, "")
	}
	return text
}

// NormalizeDecimalComma rewrites "12,50" as "12.50"
func (p *ProcessingNodes) NormalizeDecimalComma(text string) string {
	if !p.config.NormalizeDecimalComma {
		return text
	}
	return decimalComma.ReplaceAllString(text, "$1.$2")
}

// NormalizeMultiplication maps "×" to "x"
func (p *ProcessingNodes) NormalizeMultiplication(text string) string {
	if !p.config.NormalizeMultiplication {
		return text
	}
	return strings.ReplaceAll(text, "×", "x")
}

// RemoveAllWhitespace deletes every space, used for identifier tokens
func (p *ProcessingNodes) RemoveAllWhitespace(text string) string {
	if !p.config.RemoveAllWhitespace {
		return text
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// RemoveMultipleWhitespace collapses multiple spaces into single space
func (p *ProcessingNodes) RemoveMultipleWhitespace(text string) string {
	if !p.config.RemoveMultipleWhitespace {
		return text
	}
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}

// TrimPunctuation drops stray separators OCR leaves at both ends
func (p *ProcessingNodes) TrimPunctuation(text string) string {
	if !p.config.TrimPunctuation {
		return text
	}
	return edgePunct.ReplaceAllString(text, "")
}

// FoldAccents normalizes text using NFD decomposition and drops the marks
func FoldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}
