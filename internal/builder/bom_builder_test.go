package builder

import (
	"reflect"
	"testing"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

func TestNewBOMBuilder(t *testing.T) {
	opts := Options{IncludeGroupSlices: false, IncludeExamples: true}
	want := &BOMBuilder{Opts: opts, Card: ModelCardBuilder{Opts: opts}}
	if got := NewBOMBuilder(opts); !reflect.DeepEqual(got, want) {
		t.Errorf("NewBOMBuilder() = %v, want %v", got, want)
	}
}

func TestBOMBuilder_Build(t *testing.T) {
	bom, err := NewBOMBuilder(DefaultOptions()).Build(sampleContext())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bom.SerialNumber == "" || bom.Metadata.Timestamp == "" {
		t.Fatalf("serial/timestamp not set: %q %q", bom.SerialNumber, bom.Metadata.Timestamp)
	}

	model := bom.Metadata.Component
	if model.Type != cdx.ComponentTypeMachineLearningModel || model.Name != "derm-net" {
		t.Fatalf("model = %s %s", model.Type, model.Name)
	}
	if model.PackageURL != "pkg:generic/derm-net@1.0" || model.BOMRef != model.PackageURL {
		t.Fatalf("model purl = %q bomref = %q", model.PackageURL, model.BOMRef)
	}
	if v, _ := property(model.Properties, PropSeverity); v != "critical" {
		t.Fatalf("severity property = %q, want critical", v)
	}
	if v, _ := property(model.Properties, PropSnapshot); v != "snap-1" {
		t.Fatalf("snapshot property = %q, want snap-1", v)
	}
	if _, ok := property(model.Properties, PropExample); !ok {
		t.Fatalf("expected overconfident example property")
	}

	if bom.Components == nil || len(*bom.Components) != 2 {
		t.Fatalf("components = %v, want corpus and isic", bom.Components)
	}
	corpus, src := (*bom.Components)[0], (*bom.Components)[1]
	if role(corpus) != RoleCorpus || corpus.Version != "0b5f6f4e-0000-5000-8000-000000000000" {
		t.Fatalf("corpus = %+v", corpus)
	}
	if v, _ := property(corpus.Properties, PropFailed); v == "" {
		t.Fatalf("failed source not recorded on corpus")
	}
	if v, _ := property(corpus.Properties, PropClassWeight+"malignant"); v != "5.0000" {
		t.Fatalf("malignant weight = %q, want 5.0000", v)
	}
	if src.Name != "isic" || role(src) != RoleSource {
		t.Fatalf("source = %+v", src)
	}
	if v, _ := property(src.Properties, PropTableVersion); v != "2024.1" {
		t.Fatalf("table version = %q, want 2024.1", v)
	}

	ds := model.ModelCard.ModelParameters.Datasets
	if ds == nil || len(*ds) != 1 || (*ds)[0].Ref != corpus.BOMRef {
		t.Fatalf("model datasets = %v, want corpus ref", ds)
	}
	if bom.Dependencies == nil || len(*bom.Dependencies) != 3 {
		t.Fatalf("dependencies = %v", bom.Dependencies)
	}
}

func TestBOMBuilder_BuildNoCorpus(t *testing.T) {
	ctx := sampleContext()
	ctx.Report, ctx.Plan, ctx.CorpusVersion, ctx.Alert = nil, nil, "", nil
	ctx.ModelName = ""

	bom, err := NewBOMBuilder(DefaultOptions()).Build(ctx)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bom.Components != nil {
		t.Fatalf("components = %v, want none", *bom.Components)
	}
	if bom.Metadata.Component.Name != "model" {
		t.Fatalf("name = %q, want model", bom.Metadata.Component.Name)
	}
	if _, ok := property(bom.Metadata.Component.Properties, PropSeverity); ok {
		t.Fatalf("severity property set without alert")
	}
}

func TestBOMBuilder_BuildRequiresEvaluation(t *testing.T) {
	if _, err := NewBOMBuilder(DefaultOptions()).Build(BuildContext{ModelName: "m"}); err == nil {
		t.Fatalf("Build() error = nil, want error")
	}
}

func Test_buildDatasetComponent(t *testing.T) {
	tests := []struct {
		name string
		r    unify.SourceReport
		want string
	}{
		{name: "uses source id", r: unify.SourceReport{SourceID: "isic"}, want: "isic"},
		{name: "defaults to dataset", r: unify.SourceReport{}, want: "dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildDatasetComponent(tt.r, labelmap.Table{})
			if got.Type != cdx.ComponentTypeData || got.Name != tt.want {
				t.Errorf("buildDatasetComponent() = %s %s, want data %s", got.Type, got.Name, tt.want)
			}
		})
	}
}
