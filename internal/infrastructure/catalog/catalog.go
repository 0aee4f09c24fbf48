// Package catalog loads integration definitions, conditional content and
// enhanced features from a TOML file and applies them to a registry.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
)

// Catalog is the decoded content of a catalog file
type Catalog struct {
	Integrations       []integration.Integration        `toml:"integrations"`
	ConditionalContent []integration.ConditionalContent `toml:"conditional_content"`
	EnhancedFeatures   []integration.EnhancedFeature    `toml:"enhanced_features"`
}

// ParseError reports a malformed catalog file
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("catalog %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("catalog %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads and decodes the catalog at path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return parse(path, data)
}

// Parse decodes a catalog from r. source names the input in errors.
func Parse(source string, r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return parse(source, data)
}

func parse(source string, data []byte) (*Catalog, error) {
	var c Catalog
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}

		var decodeErr *toml.DecodeError
		var strictErr *toml.StrictMissingError
		switch {
		case errors.As(err, &decodeErr):
			perr.Line, perr.Column = decodeErr.Position()
		case errors.As(err, &strictErr):
			perr.Message = "unknown fields: " + strictErr.String()
		}
		return nil, perr
	}
	return &c, nil
}

// Target is the registry surface a catalog is applied to
type Target interface {
	RegisterIntegration(ctx context.Context, in *integration.Integration) error
	EnableIntegration(ctx context.Context, id string) error
	RegisterConditionalContent(ctx context.Context, content integration.ConditionalContent) error
	RegisterEnhancedFeature(ctx context.Context, feature integration.EnhancedFeature) error
	GetInstallationOrder(ids []string) ([]string, error)
}

// Result summarizes an Apply run
type Result struct {
	Registered []string
	Enabled    []string
	Failed     int
}

// Apply registers every entry, then enables the integrations marked enabled
// in installation order. Definitions are registered as copies, so the catalog
// itself is left untouched. A failing entry is logged and skipped; the returned
// error joins every failure.
func (c *Catalog) Apply(ctx context.Context, target Target, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		res     Result
		errs    []error
		enabled []string
	)
	fail := func(err error, fields ...zap.Field) {
		res.Failed++
		errs = append(errs, err)
		logger.Warn("catalog entry skipped", append(fields, zap.Error(err))...)
	}

	for i := range c.Integrations {
		in := c.Integrations[i].Clone()
		if err := target.RegisterIntegration(ctx, in); err != nil {
			fail(fmt.Errorf("register %s: %w", in.ID, err), zap.String("integration_id", in.ID))
			continue
		}
		res.Registered = append(res.Registered, in.ID)
		if in.IsEnabled {
			enabled = append(enabled, in.ID)
		}
	}
	for _, content := range c.ConditionalContent {
		if err := target.RegisterConditionalContent(ctx, content); err != nil {
			fail(fmt.Errorf("conditional content %s: %w", content.ID, err), zap.String("content_id", content.ID))
		}
	}
	for _, feature := range c.EnhancedFeatures {
		if err := target.RegisterEnhancedFeature(ctx, feature); err != nil {
			fail(fmt.Errorf("enhanced feature %s: %w", feature.ID, err), zap.String("feature_id", feature.ID))
		}
	}

	if len(enabled) > 0 {
		order, err := target.GetInstallationOrder(enabled)
		if err != nil {
			fail(fmt.Errorf("installation order: %w", err))
			return res, errors.Join(errs...)
		}
		for _, id := range order {
			if err := target.EnableIntegration(ctx, id); err != nil {
				fail(fmt.Errorf("enable %s: %w", id, err), zap.String("integration_id", id))
				continue
			}
			res.Enabled = append(res.Enabled, id)
		}
	}

	logger.Info("catalog applied",
		zap.Int("registered", len(res.Registered)),
		zap.Int("enabled", len(res.Enabled)),
		zap.Int("failed", res.Failed),
	)
	return res, errors.Join(errs...)
}
