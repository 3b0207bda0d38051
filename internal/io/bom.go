// Package io reads and writes the files FairDerm-cli exchanges with other
// tools: record and sample streams, prediction logs, reports and the
// CycloneDX fairness BOM.
package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// bomFormat resolves "json", "xml" or "auto" (default) for path. Auto picks
// XML for .xml files and JSON otherwise.
func bomFormat(path, format string) (cdx.BOMFileFormat, string, error) {
	actual := strings.ToLower(strings.TrimSpace(format))
	switch actual {
	case "", "auto":
		actual = "json"
		if strings.EqualFold(filepath.Ext(path), ".xml") {
			actual = "xml"
		}
	case "json", "xml":
	default:
		return 0, "", fmt.Errorf("unsupported BOM format: %q", format)
	}
	if actual == "xml" {
		return cdx.BOMFileFormatXML, actual, nil
	}
	return cdx.BOMFileFormatJSON, actual, nil
}

// ReadBOM reads a BOM from a file (JSON or XML).
func ReadBOM(path string, format string) (*cdx.BOM, error) {
	fileFmt, _, err := bomFormat(path, format)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bom := new(cdx.BOM)
	if err := cdx.NewBOMDecoder(f, fileFmt).Decode(bom); err != nil {
		return nil, err
	}
	return bom, nil
}

// WriteBOM writes a BOM to outputPath. The extension must match the
// resolved format. When spec is set the BOM is encoded at that CycloneDX
// version.
func WriteBOM(bom *cdx.BOM, outputPath string, format string, spec string) error {
	fileFmt, actual, err := bomFormat(outputPath, format)
	if err != nil {
		return err
	}
	if ext := filepath.Ext(outputPath); !strings.EqualFold(ext, "."+actual) {
		return fmt.Errorf("output path extension %q does not match format %q", ext, actual)
	}

	var sv cdx.SpecVersion
	if spec != "" {
		var ok bool
		if sv, ok = ParseSpecVersion(spec); !ok {
			return fmt.Errorf("unsupported CycloneDX spec version: %q", spec)
		}
	}
	if err := ensureDir(outputPath); err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := cdx.NewBOMEncoder(f, fileFmt)
	encoder.SetPretty(true)
	if spec == "" {
		return encoder.Encode(bom)
	}
	return encoder.EncodeVersion(bom, sv)
}

// ParseSpecVersion parses a spec version string to a CycloneDX SpecVersion.
// The fairness model card needs 1.5 or later.
func ParseSpecVersion(s string) (cdx.SpecVersion, bool) {
	switch strings.TrimSpace(s) {
	case "1.5":
		return cdx.SpecVersion1_5, true
	case "1.6":
		return cdx.SpecVersion1_6, true
	default:
		return cdx.SpecVersion1_6, false
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
