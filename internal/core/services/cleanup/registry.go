package cleanup

import (
	"fmt"
	"sort"
	"sync"
)

// CleanerFactory is a function type that creates a cleaner instance
type CleanerFactory func() Cleaner

// Registry manages all available cleaning profiles
type Registry struct {
	mu       sync.RWMutex
	cleaners map[string]CleanerFactory
	aliases  map[string]string
}

// Global registry instance
var globalRegistry = &Registry{
	cleaners: make(map[string]CleanerFactory),
	aliases:  make(map[string]string),
}

// Profile identifiers used by the field parser.
const (
	ProfileText    = "text"
	ProfileEmail   = "email"
	ProfileProduct = "product"
	ProfileAmount  = "amount"
	ProfileToken   = "token"
	ProfileDate    = "date"
)

// Register adds a cleaner to the registry with optional aliases
func Register(profile string, factory CleanerFactory, aliases ...string) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.cleaners[profile] = factory
	for _, alias := range aliases {
		globalRegistry.aliases[alias] = profile
	}
}

// Get retrieves a cleaner factory by profile or alias
func Get(identifier string) (CleanerFactory, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	if profile, exists := globalRegistry.aliases[identifier]; exists {
		identifier = profile
	}

	factory, exists := globalRegistry.cleaners[identifier]
	if !exists {
		return nil, fmt.Errorf("cleaning profile '%s' not found. Available: %v", identifier, listLocked())
	}
	return factory, nil
}

// Create creates a new cleaner instance
func Create(identifier string) (Cleaner, error) {
	factory, err := Get(identifier)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// MustCreate is Create for the built-in profiles; it panics on unknown names.
func MustCreate(identifier string) Cleaner {
	c, err := Create(identifier)
	if err != nil {
		panic(err)
	}
	return c
}

// ListAvailable returns the sorted list of registered profiles
func ListAvailable() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	profiles := make([]string, 0, len(globalRegistry.cleaners))
	for profile := range globalRegistry.cleaners {
		profiles = append(profiles, profile)
	}
	sort.Strings(profiles)
	return profiles
}

// init registers the built-in profiles
func init() {
	Register(ProfileText, func() Cleaner {
		return NewProfileCleaner(ProfileText, "Free text",
			"Client names and addresses: drops border glyphs, joins lines, collapses spaces",
			&CleanerConfig{
				Artifacts:                DefaultArtifacts(),
				StripOCRArtifacts:        true,
				JoinLines:                true,
				RemoveMultipleWhitespace: true,
				TrimPunctuation:          true,
			})
	}, "name", "address")

	Register(ProfileEmail, func() Cleaner {
		return NewProfileCleaner(ProfileEmail, "Email address",
			"Drops border glyphs and every space inside the address",
			&CleanerConfig{
				Artifacts:           DefaultArtifacts(),
				StripOCRArtifacts:   true,
				RemoveAllWhitespace: true,
			})
	}, "mail")

	Register(ProfileProduct, func() Cleaner {
		return NewProfileCleaner(ProfileProduct, "Product label",
			"Lower-cases and collapses spaces so repeated mentions share a key",
			&CleanerConfig{
				Artifacts:                DefaultArtifacts(),
				StripOCRArtifacts:        true,
				MakeLowercase:            true,
				RemoveMultipleWhitespace: true,
			})
	})

	Register(ProfileAmount, func() Cleaner {
		return NewProfileCleaner(ProfileAmount, "Amount",
			"Strips currency words, maps decimal commas to dots and removes spaces",
			&CleanerConfig{
				Artifacts:               DefaultArtifacts(),
				CurrencyWords:           DefaultCurrencyWords(),
				StripOCRArtifacts:       true,
				StripCurrencyWords:      true,
				NormalizeDecimalComma:   true,
				NormalizeMultiplication: true,
				RemoveAllWhitespace:     true,
			})
	}, "price", "total")

	Register(ProfileToken, func() Cleaner {
		return NewProfileCleaner(ProfileToken, "Identifier token",
			"Removes every space from invoice reference fragments",
			&CleanerConfig{RemoveAllWhitespace: true})
	})

	Register(ProfileDate, func() Cleaner {
		return NewProfileCleaner(ProfileDate, "Date text",
			"Folds accents and lower-cases month names before parsing",
			&CleanerConfig{
				FoldAccents:              true,
				MakeLowercase:            true,
				RemoveMultipleWhitespace: true,
			})
	})
}
