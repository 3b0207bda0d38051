// Package builder renders a fairness run as a CycloneDX ML-BOM: the model
// component carries the scores and fairness assessments in its model card,
// the unified corpus and each contributing source become data components.
package builder

import (
	"fmt"
	"strconv"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

// Property names written by the builder.
const (
	PropRole          = "fairderm:role"
	PropSnapshot      = "fairderm:evaluation:snapshot"
	PropRecords       = "fairderm:evaluation:records"
	PropUsed          = "fairderm:evaluation:used"
	PropMinGroupSize  = "fairderm:evaluation:minGroupSize"
	PropSeverity      = "fairderm:alert:severity"
	PropTriggered     = "fairderm:alert:triggered"
	PropOverconfident = "fairderm:alert:overconfident"
	PropExample       = "fairderm:alert:example"
	PropNarrative     = "fairderm:alert:narrative"
	PropSamples       = "fairderm:dataset:samples"
	PropMapped        = "fairderm:dataset:mapped"
	PropUnmapped      = "fairderm:dataset:unmapped"
	PropMalformed     = "fairderm:dataset:malformed"
	PropFailed        = "fairderm:dataset:failed"
	PropTableVersion  = "fairderm:labelmap:version"
	PropClassWeight   = "fairderm:balance:weight:"
	PropAugmentation  = "fairderm:balance:augmentation:"
	RoleCorpus        = "corpus"
	RoleSource        = "source"
	defaultModelName  = "model"
	defaultCorpusName = "unified-corpus"
)

type BOMBuilder struct {
	Opts Options
	Card ModelCardBuilder
}

func NewBOMBuilder(opts Options) *BOMBuilder {
	return &BOMBuilder{Opts: opts, Card: ModelCardBuilder{Opts: opts}}
}

// Build returns the ML-BOM for ctx.
func (b BOMBuilder) Build(ctx BuildContext) (*cdx.BOM, error) {
	if ctx.Evaluation == nil {
		return nil, fmt.Errorf("build bom: evaluation is required")
	}
	logf(ctx.ModelName, "bom start")

	bom := cdx.NewBOM()
	bom.Metadata = &cdx.Metadata{}

	var datasets []cdx.Component
	var corpusRefs []string
	if corpus := buildCorpusComponent(ctx); corpus != nil {
		AddComponentPurl(corpus)
		AddComponentBOMRef(corpus)
		datasets = append(datasets, *corpus)
		corpusRefs = append(corpusRefs, corpus.BOMRef)
	}
	for _, src := range buildSourceComponents(ctx) {
		AddComponentPurl(&src)
		AddComponentBOMRef(&src)
		datasets = append(datasets, src)
	}

	card, err := b.Card.Build(ctx, corpusRefs)
	if err != nil {
		return nil, err
	}
	model := buildMetadataComponent(ctx)
	model.ModelCard = card
	model.Properties = b.modelProperties(ctx)
	AddComponentPurl(model)
	AddComponentBOMRef(model)

	bom.Metadata.Component = model
	if len(datasets) > 0 {
		bom.Components = &datasets
	}

	if err := AddMetaSerialNumber(bom); err != nil {
		return nil, err
	}
	if err := AddMetaTimestamp(bom); err != nil {
		return nil, err
	}
	if err := AddMetaTools(bom, "", ""); err != nil {
		return nil, err
	}
	AddDependencies(bom)

	logf(ctx.ModelName, "bom ok (%d data components)", len(datasets))
	return bom, nil
}

func buildMetadataComponent(ctx BuildContext) *cdx.Component {
	name := strings.TrimSpace(ctx.ModelName)
	if name == "" {
		name = defaultModelName
	}
	return &cdx.Component{
		Type:    cdx.ComponentTypeMachineLearningModel,
		Name:    name,
		Version: strings.TrimSpace(ctx.ModelVersion),
	}
}

func (b BOMBuilder) modelProperties(ctx BuildContext) *[]cdx.Property {
	ev := ctx.Evaluation
	props := []cdx.Property{
		{Name: PropSnapshot, Value: ev.Snapshot},
		{Name: PropRecords, Value: strconv.Itoa(ev.Total)},
		{Name: PropUsed, Value: strconv.Itoa(ev.Used)},
		{Name: PropMinGroupSize, Value: strconv.Itoa(ev.MinGroupSize)},
	}
	if a := ctx.Alert; a != nil {
		props = append(props,
			cdx.Property{Name: PropSeverity, Value: string(a.Severity)},
			cdx.Property{Name: PropOverconfident, Value: strconv.Itoa(a.Overconfident.Count)},
		)
		for _, t := range a.TriggeredMetrics {
			props = append(props, cdx.Property{Name: PropTriggered, Value: t.Metric + "=" + t.Score.String() + " (" + string(t.Status) + ")"})
		}
		if b.Opts.IncludeExamples {
			for _, ex := range a.Overconfident.Examples {
				props = append(props, cdx.Property{
					Name:  PropExample,
					Value: fmt.Sprintf("%s %s group=%s confidence=%.3f", ex.Timestamp, ex.SampleID, ex.Group, ex.Confidence),
				})
			}
		}
		if a.Narrative != "" {
			props = append(props, cdx.Property{Name: PropNarrative, Value: a.Narrative})
		}
	}
	return &props
}

// buildCorpusComponent describes the unified corpus. It returns nil when the
// run carries no corpus information.
func buildCorpusComponent(ctx BuildContext) *cdx.Component {
	if ctx.Report == nil && ctx.CorpusVersion == "" && ctx.Plan == nil {
		return nil
	}
	comp := &cdx.Component{
		Type:    cdx.ComponentTypeData,
		Name:    defaultCorpusName,
		Version: ctx.CorpusVersion,
		Data: &[]cdx.ComponentData{{
			Type:        cdx.ComponentDataTypeDataset,
			Name:        defaultCorpusName,
			Description: "dermatology images unified to benign/malignant labels",
		}},
	}
	props := []cdx.Property{{Name: PropRole, Value: RoleCorpus}}
	if r := ctx.Report; r != nil {
		props = append(props,
			cdx.Property{Name: PropSamples, Value: strconv.Itoa(r.TotalSamples)},
			cdx.Property{Name: PropUnmapped, Value: strconv.Itoa(r.Unmapped())},
			cdx.Property{Name: PropMalformed, Value: strconv.Itoa(r.Malformed())},
		)
		for _, f := range r.Failed {
			props = append(props, cdx.Property{Name: PropFailed, Value: f.SourceID + ": " + f.Reason})
		}
	}
	if p := ctx.Plan; p != nil {
		for _, l := range dataset.Classes() {
			w, ok := p.Weights[l]
			if !ok {
				continue
			}
			props = append(props,
				cdx.Property{Name: PropClassWeight + string(l), Value: strconv.FormatFloat(w, 'f', 4, 64)},
				cdx.Property{Name: PropAugmentation + string(l), Value: strconv.Itoa(p.Augmentation[l])},
			)
		}
	}
	comp.Properties = &props
	return comp
}

// buildSourceComponents returns one data component per unified source, in
// source id order. Failed sources are listed on the corpus instead.
func buildSourceComponents(ctx BuildContext) []cdx.Component {
	if ctx.Report == nil {
		return nil
	}
	tables := map[string]labelmap.Table{}
	for _, t := range ctx.Tables {
		tables[t.Source] = t
	}
	failed := map[string]bool{}
	for _, f := range ctx.Report.Failed {
		failed[f.SourceID] = true
	}
	var out []cdx.Component
	for _, id := range ctx.Report.SourceIDs() {
		if failed[id] {
			continue
		}
		out = append(out, buildDatasetComponent(ctx.Report.Sources[id], tables[id]))
	}
	return out
}

func buildDatasetComponent(r unify.SourceReport, table labelmap.Table) cdx.Component {
	name := strings.TrimSpace(r.SourceID)
	if name == "" {
		name = "dataset"
	}
	props := []cdx.Property{
		{Name: PropRole, Value: RoleSource},
		{Name: PropSamples, Value: strconv.Itoa(r.Samples)},
		{Name: PropMapped, Value: strconv.Itoa(r.Mapped)},
		{Name: PropUnmapped, Value: strconv.Itoa(r.Unmapped)},
		{Name: PropMalformed, Value: strconv.Itoa(r.Malformed)},
	}
	if table.Version != "" {
		props = append(props, cdx.Property{Name: PropTableVersion, Value: table.Version})
	}
	comp := cdx.Component{
		Type:        cdx.ComponentTypeData,
		Name:        name,
		Description: table.Description,
		Data: &[]cdx.ComponentData{{
			Type: cdx.ComponentDataTypeDataset,
			Name: name,
		}},
		Properties: &props,
	}
	return comp
}
