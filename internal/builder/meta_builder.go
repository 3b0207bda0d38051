package builder

import (
	"strings"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

// AddMetaSerialNumber sets a serial number if not already set
func AddMetaSerialNumber(bom *cyclonedx.BOM) error {
	if bom.SerialNumber == "" {
		bom.SerialNumber = "urn:uuid:" + generateUUID()
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}

// AddMetaTimestamp sets the timestamp if not already set
func AddMetaTimestamp(bom *cyclonedx.BOM) error {
	if bom.Metadata == nil {
		bom.Metadata = &cyclonedx.Metadata{}
	}
	if bom.Metadata.Timestamp == "" {
		bom.Metadata.Timestamp = CurrentTimestampRFC3339()
	}
	return nil
}

// CurrentTimestampRFC3339 returns now formatted as RFC3339 (e.g. 2026-01-22T10:41:24+01:00)
func CurrentTimestampRFC3339() string {
	return time.Now().Format(time.RFC3339)
}

const (
	DefaultToolVendor = "idlab-discover"
	DefaultToolName   = "FairDerm-cli"
)

// AddMetaTools adds a Component entry for the tool into bom.metadata.tools.Components.
// If toolName or toolVersion are empty, DefaultToolName and GetVersion are used.
func AddMetaTools(bom *cyclonedx.BOM, toolName string, toolVersion string) error {
	if bom.Metadata == nil {
		bom.Metadata = &cyclonedx.Metadata{}
	}
	if bom.Metadata.Tools == nil {
		bom.Metadata.Tools = &cyclonedx.ToolsChoice{}
	}

	name := toolName
	if name == "" {
		name = DefaultToolName
	}
	version := toolVersion
	if version == "" {
		version = GetVersion()
	}

	comp := cyclonedx.Component{
		Type: cyclonedx.ComponentTypeApplication,
		Manufacturer: &cyclonedx.OrganizationalEntity{
			Name: DefaultToolVendor,
		},
		Name:    name,
		Version: version,
	}

	if bom.Metadata.Tools.Components == nil {
		bom.Metadata.Tools.Components = &[]cyclonedx.Component{comp}
	} else {
		components := append(*bom.Metadata.Tools.Components, comp)
		bom.Metadata.Tools.Components = &components
	}

	return nil
}

// GeneratePurl generates a generic package URL for a model or dataset.
// Datasets live under the "datasets" namespace.
func GeneratePurl(kind string, id string, version string) string {
	if kind != "model" && kind != "dataset" {
		kind = "unknown"
	}
	id = NormalizeSegment(strings.TrimSpace(id))
	if id == "" {
		id = "unknown"
	}
	var base string
	switch kind {
	case "model":
		base = "pkg:generic/" + id
	case "dataset":
		base = "pkg:generic/datasets/" + id
	default:
		base = "pkg:generic/" + kind + "/" + id
	}

	if version = strings.TrimSpace(version); version == "" {
		return base
	}
	return base + "@" + strings.ToLower(NormalizeSegment(version))
}

// NormalizeSegment safe-encodes /, @, : and spaces in purl segments
func NormalizeSegment(segment string) string {
	var b strings.Builder
	for _, ch := range segment {
		switch ch {
		case '@':
			b.WriteString("%40")
		case ' ':
			b.WriteString("%20")
		case '/':
			b.WriteString("%2F")
		case ':':
			b.WriteString("%3A")
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// AddComponentPurl sets Component.PURL from its type, name and version if not
// already set.
func AddComponentPurl(c *cyclonedx.Component) {
	if c == nil || c.PackageURL != "" {
		return
	}

	kind := "unknown"
	switch c.Type {
	case cyclonedx.ComponentTypeMachineLearningModel:
		kind = "model"
	case cyclonedx.ComponentTypeData:
		kind = "dataset"
	}
	c.PackageURL = GeneratePurl(kind, c.Name, c.Version)
}

// AddComponentBOMRef sets Component.BOMRef. If PURL exists it uses that, otherwise sets a UUID urn.
func AddComponentBOMRef(c *cyclonedx.Component) {
	if c == nil {
		return
	}
	if c.BOMRef != "" {
		return
	}
	if c.PackageURL != "" {
		c.BOMRef = c.PackageURL
		return
	}
	c.BOMRef = "urn:uuid:" + generateUUID()
}
