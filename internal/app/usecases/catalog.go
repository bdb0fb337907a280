package usecases

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/pkg/validation"
	"gopkg.in/yaml.v3"
)

// LoadCatalog converts plugin descriptors into the session catalog.
// Descriptors failing struct validation are still converted, since
// conversion degrades gracefully, but are reported at warn level.
func LoadCatalog(descriptors []operator.PluginDescriptor, extra operator.ExtraParameterBuilder, logger *slog.Logger) *operator.Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range descriptors {
		if err := validation.ValidateDescriptor(d); err != nil {
			logger.Warn("plugin descriptor is incomplete",
				slog.String("plugin", d.PluginID),
				slog.String("error", err.Error()))
		}
	}
	return operator.FromDescriptors(descriptors, extra)
}

// ReadDescriptors decodes a YAML or JSON list of plugin descriptors.
func ReadDescriptors(r io.Reader) ([]operator.PluginDescriptor, error) {
	var descriptors []operator.PluginDescriptor
	if err := yaml.NewDecoder(r).Decode(&descriptors); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode plugin descriptors: %w", err)
	}
	return descriptors, nil
}

// LoadCatalogFile reads descriptors from path and builds a catalog. An empty
// path yields a catalog with only the path input operators.
func LoadCatalogFile(path string, logger *slog.Logger) (*operator.Catalog, error) {
	if path == "" {
		return operator.NewCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	descriptors, err := ReadDescriptors(f)
	if err != nil {
		return nil, err
	}
	return LoadCatalog(descriptors, nil, logger), nil
}
