package validator

import (
	"fmt"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/idlab-discover/FairDerm-cli/internal/builder"
	bomio "github.com/idlab-discover/FairDerm-cli/internal/io"
)

// BOMResult is the outcome of a fairness BOM check.
type BOMResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateBOM checks that bom carries a fairness run: an ML model with
// performance metrics and resolvable dependency references. In strict mode
// warnings count as errors.
func ValidateBOM(bom *cdx.BOM, strict bool) BOMResult {
	var res BOMResult
	if bom == nil {
		res.Errors = append(res.Errors, "BOM is nil")
		return res
	}
	if bom.SpecVersion == 0 {
		res.Errors = append(res.Errors, "BOM missing spec version")
	} else if _, ok := bomio.ParseSpecVersion(bom.SpecVersion.String()); !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported spec version %q (need 1.5 or 1.6)", bom.SpecVersion.String()))
	}

	if bom.Metadata == nil || bom.Metadata.Component == nil {
		res.Errors = append(res.Errors, "BOM missing metadata.component")
		return finish(res, strict)
	}
	model := bom.Metadata.Component
	if model.Type != cdx.ComponentTypeMachineLearningModel {
		res.Errors = append(res.Errors, fmt.Sprintf("metadata.component type %q, want %q", model.Type, cdx.ComponentTypeMachineLearningModel))
	}
	if model.Name == "" {
		res.Errors = append(res.Errors, "metadata.component missing name")
	}

	card := model.ModelCard
	switch {
	case card == nil:
		res.Errors = append(res.Errors, "model card not present")
	case card.QuantitativeAnalysis == nil || card.QuantitativeAnalysis.PerformanceMetrics == nil || len(*card.QuantitativeAnalysis.PerformanceMetrics) == 0:
		res.Errors = append(res.Errors, "model card has no fairness metrics")
	}
	if !hasProperty(model, builder.PropSnapshot) {
		res.Warnings = append(res.Warnings, "evaluation snapshot not recorded")
	}
	if !hasProperty(model, builder.PropSeverity) {
		res.Warnings = append(res.Warnings, "bias alert severity not recorded")
	}

	refs := map[string]bool{}
	if model.BOMRef != "" {
		refs[model.BOMRef] = true
	}
	if bom.Components != nil {
		for _, c := range *bom.Components {
			if c.BOMRef != "" {
				refs[c.BOMRef] = true
			}
		}
	}
	if bom.Dependencies != nil {
		for _, d := range *bom.Dependencies {
			if !refs[d.Ref] {
				res.Errors = append(res.Errors, fmt.Sprintf("dependency ref %q does not resolve", d.Ref))
			}
			if d.Dependencies == nil {
				continue
			}
			for _, to := range *d.Dependencies {
				if !refs[to] {
					res.Errors = append(res.Errors, fmt.Sprintf("dependency %q -> %q does not resolve", d.Ref, to))
				}
			}
		}
	}
	return finish(res, strict)
}

// ValidateBOMFile reads and checks the BOM at path.
func ValidateBOMFile(path, format string, strict bool) (*cdx.BOM, BOMResult, error) {
	bom, err := bomio.ReadBOM(path, format)
	if err != nil {
		return nil, BOMResult{}, err
	}
	return bom, ValidateBOM(bom, strict), nil
}

func finish(res BOMResult, strict bool) BOMResult {
	if strict && len(res.Warnings) > 0 {
		res.Errors = append(res.Errors, res.Warnings...)
		res.Warnings = nil
	}
	res.Valid = len(res.Errors) == 0
	return res
}

func hasProperty(c *cdx.Component, name string) bool {
	if c.Properties == nil {
		return false
	}
	for _, p := range *c.Properties {
		if p.Name == name && p.Value != "" {
			return true
		}
	}
	return false
}
