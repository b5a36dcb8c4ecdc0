package cleanup

// Cleaner defines the interface that every OCR text cleaning profile follows.
type Cleaner interface {
	// Process cleans a single text string through the profile's steps
	Process(text string) string

	// GetProfile returns the registry identifier (e.g. "email", "product")
	GetProfile() string

	// GetName returns a human-readable name
	GetName() string

	// GetDescription returns what this profile does
	GetDescription() string

	// GetPipelineSteps returns the list of processing steps in order
	GetPipelineSteps() []string
}

// ProcessingStep represents a single text transformation function
type ProcessingStep func(string) string

// CleanerConfig holds the flags and tables used by the processing nodes
type CleanerConfig struct {
	// OCR artifacts removed verbatim, in order
	Artifacts []string `json:"artifacts"`

	// Currency words stripped from amounts ("Euro" and its common misreads)
	CurrencyWords []string `json:"currency_words"`

	// Processing flags
	StripOCRArtifacts        bool `json:"strip_ocr_artifacts"`
	JoinLines                bool `json:"join_lines"`
	FoldAccents              bool `json:"fold_accents"`
	MakeLowercase            bool `json:"make_lowercase"`
	StripCurrencyWords       bool `json:"strip_currency_words"`
	NormalizeDecimalComma    bool `json:"normalize_decimal_comma"`
	NormalizeMultiplication  bool `json:"normalize_multiplication"`
	RemoveAllWhitespace      bool `json:"remove_all_whitespace"`
	RemoveMultipleWhitespace bool `json:"remove_multiple_whitespace"`
	TrimPunctuation          bool `json:"trim_punctuation"`
}

// DefaultArtifacts are the separators Tesseract tends to emit around table borders.
func DefaultArtifacts() []string {
	return []string{"| ", " |", "|"}
}

// DefaultCurrencyWords lists the currency suffix and its frequent misreads.
func DefaultCurrencyWords() []string {
	return []string{"Euro", "Furo", "EUR", "€"}
}
