// Package loader reads workflow definitions from JSON or YAML files. Both the
// native workflow document and n8n exports are accepted.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/n8n"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported workflow file format")
	ErrEmptyDocument     = errors.New("workflow document is empty")
)

// FormatFromPath picks the format from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Load reads and parses the workflow file at path.
func Load(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	wf, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return wf, nil
}

// Parse decodes a workflow document. A document with a top level "nodes" key
// is an n8n export and goes through the n8n importer; anything else is the
// native format. Edges are rebuilt from next_step_ids so prev_step_ids in the
// file are never trusted.
func Parse(data []byte, format Format) (*models.Workflow, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	if isN8N(doc) {
		return n8n.Import(doc)
	}

	var wf models.Workflow

	if err := json.Unmarshal(doc, &wf); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}

	return normalize(&wf)
}

// toJSON converts a document in format to JSON.
func toJSON(data []byte, format Format) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}

		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("yaml document is not representable as json: %w", err)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func isN8N(doc []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return false
	}

	_, ok := probe["nodes"]

	return ok
}

func normalize(in *models.Workflow) (*models.Workflow, error) {
	status := in.Status
	if status == "" {
		status = models.WorkflowStatusDraft
	}

	steps := in.Steps

	draft := *in
	draft.Status = models.WorkflowStatusDraft
	draft.Steps = nil

	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}

	if draft.Settings == (models.Settings{}) {
		draft.Settings = models.DefaultSettings()
	}

	store := graph.NewStore(&draft)

	for _, step := range steps {
		if err := store.AddStep(step); err != nil {
			return nil, err
		}
	}

	for _, step := range steps {
		for _, next := range step.NextStepIDs {
			if err := store.Connect(step.ID, next); err != nil {
				return nil, err
			}
		}
	}

	wf := store.Workflow()
	wf.Status = status

	return wf, nil
}

// Marshal encodes wf in format using the JSON field names of the model.
func Marshal(wf *models.Workflow, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}

		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
