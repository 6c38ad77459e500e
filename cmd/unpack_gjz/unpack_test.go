package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/granular-oss/geostream"
)

func writeTestGJZ(t *testing.T, path string, ids ...string) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer func() { _ = file.Close() }()

	w, err := geostream.NewWriter(file, nil)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for i, id := range ids {
		f := geostream.NewFeature(orb.Point{float64(i), float64(i)})
		f.Properties = geojson.Properties{"id": id, "index": i}
		if err := w.WriteFeature(f); err != nil {
			t.Fatalf("WriteFeature failed: %v", err)
		}
	}
}

func unpackedIDs(t *testing.T, output string) []string {
	t.Helper()

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Type != "FeatureCollection" {
		t.Fatalf("expected a FeatureCollection, got %q", doc.Type)
	}
	ids := make([]string, 0, len(doc.Features))
	for _, f := range doc.Features {
		ids = append(ids, f.Properties["id"].(string))
	}
	return ids
}

func TestUnpackFile(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "data.gjz")
	output := filepath.Join(tmpDir, "data.json")
	writeTestGJZ(t, input, "a", "b", "c")

	count, err := unpackFile(input, output, nil, &options{})
	if err != nil {
		t.Fatalf("unpackFile failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 features, got %d", count)
	}
	if ids := unpackedIDs(t, output); len(ids) != 3 || ids[0] != "a" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestUnpackFile_Reverse(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "data.gjz")
	output := filepath.Join(tmpDir, "data.json")
	writeTestGJZ(t, input, "a", "b", "c")

	if _, err := unpackFile(input, output, nil, &options{reverse: true}); err != nil {
		t.Fatalf("unpackFile failed: %v", err)
	}
	if ids := unpackedIDs(t, output); len(ids) != 3 || ids[0] != "c" || ids[2] != "a" {
		t.Errorf("expected reversed ids, got %v", ids)
	}
}

func TestUnpackFile_SelectFilter(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "data.gjz")
	output := filepath.Join(tmpDir, "data.json")
	writeTestGJZ(t, input, "a", "b", "c")

	// JSON numbers arrive as float64; matching must still select the
	// CBOR-decoded int64 property.
	var filter geojson.Properties
	if err := json.Unmarshal([]byte(`{"index": 1}`), &filter); err != nil {
		t.Fatalf("bad filter: %v", err)
	}
	count, err := unpackFile(input, output, filter, &options{})
	if err != nil {
		t.Fatalf("unpackFile failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 selected feature, got %d", count)
	}
	if ids := unpackedIDs(t, output); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("expected [b], got %v", ids)
	}
}

func TestResolveOutput(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "one.gjz")
	writeTestGJZ(t, input, "a")

	// Named .json output requires a single input file.
	_, single, err := resolveOutput(filepath.Join(tmpDir, "out.json"), []string{input})
	if err != nil || single == "" {
		t.Errorf("expected single-file output, got %q, %v", single, err)
	}
	if _, _, err := resolveOutput("out.json", []string{input, input}); err == nil {
		t.Error("expected error for .json output with multiple inputs")
	}

	// Directory output is created when missing.
	newDir := filepath.Join(tmpDir, "nested", "out")
	dir, _, err := resolveOutput(newDir, []string{input})
	if err != nil || dir != newDir {
		t.Fatalf("expected directory output, got %q, %v", dir, err)
	}
	if info, err := os.Stat(newDir); err != nil || !info.IsDir() {
		t.Errorf("expected directory to be created: %v", err)
	}

	// An existing non-directory path is rejected.
	if _, _, err := resolveOutput(input, []string{input}); err == nil {
		t.Error("expected error for existing non-directory output path")
	}
}

func TestOutputPath(t *testing.T) {
	if got := outputPath("", filepath.Join("data", "run.gjz")); got != filepath.Join("data", "run.json") {
		t.Errorf("unexpected default output path: %s", got)
	}
	if got := outputPath("out", filepath.Join("data", "run.gjz")); got != filepath.Join("out", "run.json") {
		t.Errorf("unexpected directory output path: %s", got)
	}
}
