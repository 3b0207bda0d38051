package builder

import cdx "github.com/CycloneDX/cyclonedx-go"

// AddDependencies builds the dependency graph: the model (metadata
// component) depends on the corpus, and the corpus on every source it was
// unified from. Without a corpus component the model depends on all data
// components directly.
func AddDependencies(bom *cdx.BOM) {
	if bom == nil {
		return
	}

	var modelRef string
	if bom.Metadata != nil && bom.Metadata.Component != nil {
		modelRef = bom.Metadata.Component.BOMRef
	}
	if modelRef == "" {
		return
	}

	var corpusRef string
	var sourceRefs []string
	if bom.Components != nil {
		for _, comp := range *bom.Components {
			if comp.Type != cdx.ComponentTypeData || comp.BOMRef == "" {
				continue
			}
			if corpusRef == "" && role(comp) == RoleCorpus {
				corpusRef = comp.BOMRef
				continue
			}
			sourceRefs = append(sourceRefs, comp.BOMRef)
		}
	}

	deps := make([]cdx.Dependency, 0, 2+len(sourceRefs))
	modelDep := cdx.Dependency{Ref: modelRef}
	switch {
	case corpusRef != "":
		modelDep.Dependencies = &[]string{corpusRef}
	case len(sourceRefs) > 0:
		cp := append([]string(nil), sourceRefs...)
		modelDep.Dependencies = &cp
	}
	deps = append(deps, modelDep)

	if corpusRef != "" {
		corpusDep := cdx.Dependency{Ref: corpusRef}
		if len(sourceRefs) > 0 {
			cp := append([]string(nil), sourceRefs...)
			corpusDep.Dependencies = &cp
		}
		deps = append(deps, corpusDep)
	}
	for _, ref := range sourceRefs {
		deps = append(deps, cdx.Dependency{Ref: ref})
	}

	bom.Dependencies = &deps
}

func role(c cdx.Component) string {
	if c.Properties == nil {
		return ""
	}
	for _, p := range *c.Properties {
		if p.Name == PropRole {
			return p.Value
		}
	}
	return ""
}
