package cleanup

// ProfileCleaner runs a fixed, ordered list of processing nodes.
type ProfileCleaner struct {
	profile     string
	name        string
	description string
	config      *CleanerConfig
	nodes       *ProcessingNodes
	steps       []namedStep
}

type namedStep struct {
	name string
	fn   ProcessingStep
}

// NewProfileCleaner builds a cleaner whose steps are every node enabled in
// config, in the canonical order below.
func NewProfileCleaner(profile, name, description string, config *CleanerConfig) *ProfileCleaner {
	nodes := NewProcessingNodes(config)

	all := []namedStep{
		{"strip_ocr_artifacts", nodes.StripOCRArtifacts},
		{"join_lines", nodes.JoinLines},
		{"fold_accents", nodes.FoldAccents},
		{"make_lowercase", nodes.MakeLowercase},
		{"strip_currency_words", nodes.StripCurrencyWords},
		{"normalize_decimal_comma", nodes.NormalizeDecimalComma},
		{"normalize_multiplication", nodes.NormalizeMultiplication},
		{"remove_all_whitespace", nodes.RemoveAllWhitespace},
		{"remove_multiple_whitespace", nodes.RemoveMultipleWhitespace},
		{"trim_punctuation", nodes.TrimPunctuation},
	}
	enabled := map[string]bool{
		"strip_ocr_artifacts":        config.StripOCRArtifacts,
		"join_lines":                 config.JoinLines,
		"fold_accents":               config.FoldAccents,
		"make_lowercase":             config.MakeLowercase,
		"strip_currency_words":       config.StripCurrencyWords,
		"normalize_decimal_comma":    config.NormalizeDecimalComma,
		"normalize_multiplication":   config.NormalizeMultiplication,
		"remove_all_whitespace":      config.RemoveAllWhitespace,
		"remove_multiple_whitespace": config.RemoveMultipleWhitespace,
		"trim_punctuation":           config.TrimPunctuation,
	}

	var steps []namedStep
	for _, s := range all {
		if enabled[s.name] {
			steps = append(steps, s)
		}
	}

	return &ProfileCleaner{
		profile:     profile,
		name:        name,
		description: description,
		config:      config,
		nodes:       nodes,
		steps:       steps,
	}
}

// Process processes text through the configured pipeline
func (c *ProfileCleaner) Process(text string) string {
	for _, step := range c.steps {
		text = step.fn(text)
	}
	return text
}

func (c *ProfileCleaner) GetProfile() string     { return c.profile }
func (c *ProfileCleaner) GetName() string        { return c.name }
func (c *ProfileCleaner) GetDescription() string { return c.description }

func (c *ProfileCleaner) GetPipelineSteps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.name
	}
	return names
}
