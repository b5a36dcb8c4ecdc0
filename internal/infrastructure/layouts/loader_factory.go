package layouts

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

// LoaderFactory picks a loader from the file extension
type LoaderFactory struct {
	loaders map[string]LayoutLoader
}

// NewLoaderFactory creates a factory with the JSON and CSV loaders
func NewLoaderFactory() *LoaderFactory {
	factory := &LoaderFactory{loaders: make(map[string]LayoutLoader)}
	factory.RegisterLoader(NewJSONLoader())
	factory.RegisterLoader(NewCSVLoader())
	return factory
}

// RegisterLoader registers a loader for each of its extensions
func (f *LoaderFactory) RegisterLoader(loader LayoutLoader) {
	for _, ext := range loader.SupportedFormats() {
		f.loaders[normalizeExt(ext)] = loader
	}
}

// GetLoader returns the loader for a file extension
func (f *LoaderFactory) GetLoader(fileExt string) (LayoutLoader, error) {
	loader, ok := f.loaders[normalizeExt(fileExt)]
	if !ok {
		return nil, fmt.Errorf("no layout loader for extension: %s", fileExt)
	}
	return loader, nil
}

// LoadFile loads the layout at filePath; an empty path yields the default layout
func (f *LoaderFactory) LoadFile(ctx context.Context, filePath string) (extraction.Layout, error) {
	if filePath == "" {
		return extraction.DefaultLayout(), nil
	}
	loader, err := f.GetLoader(filepath.Ext(filePath))
	if err != nil {
		return extraction.Layout{}, err
	}
	return loader.Load(ctx, filePath)
}

// SupportedFormats returns all supported file extensions, sorted
func (f *LoaderFactory) SupportedFormats() []string {
	formats := make([]string, 0, len(f.loaders))
	for ext := range f.loaders {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
