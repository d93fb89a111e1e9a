package kore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Parameter describes one operation parameter.
type Parameter struct {
	Name     string `json:"name"     yaml:"name"`
	In       string `json:"in"       yaml:"in"`
	Required bool   `json:"required" yaml:"required"`
}

// OperationSpec describes one remote operation of the API.
type OperationSpec struct {
	ID         string      `json:"id"                   yaml:"id"`
	Method     string      `json:"method"               yaml:"method"`
	Path       string      `json:"path"                 yaml:"path"`
	Summary    string      `json:"summary,omitempty"    yaml:"summary,omitempty"`
	Tags       []string    `json:"tags,omitempty"       yaml:"tags,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// PathParams returns the names of the parameters substituted into the path.
func (o *OperationSpec) PathParams() []string {
	var names []string

	for _, param := range o.Parameters {
		if param.In == "path" {
			names = append(names, param.Name)
		}
	}

	return names
}

// Catalogue is the parsed API description document.
type Catalogue struct {
	Version    string                   `json:"version"    yaml:"version"`
	BasePath   string                   `json:"basePath"   yaml:"basePath"`
	Operations map[string]OperationSpec `json:"operations" yaml:"operations"`
}

// OperationIDs returns the sorted operation IDs.
func (c *Catalogue) OperationIDs() []string {
	ids := make([]string, 0, len(c.Operations))
	for id := range c.Operations {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

type swaggerOperation struct {
	OperationID string      `json:"operationId"`
	Summary     string      `json:"summary"`
	Tags        []string    `json:"tags"`
	Parameters  []Parameter `json:"parameters"`
}

type swaggerDocument struct {
	Swagger  string `json:"swagger"`
	BasePath string `json:"basePath"`
	Info     struct {
		Version string `json:"version"`
	} `json:"info"`
	Paths map[string]map[string]json.RawMessage `json:"paths"`
}

var swaggerMethods = map[string]string{
	"get":     http.MethodGet,
	"put":     http.MethodPut,
	"post":    http.MethodPost,
	"delete":  http.MethodDelete,
	"patch":   http.MethodPatch,
	"head":    http.MethodHead,
	"options": http.MethodOptions,
}

// ParseCatalogue parses a Swagger 2.0 document. Operations without an
// operationId are keyed by "METHOD path". Operation paths include the
// document's basePath.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var doc swaggerDocument

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}

	if doc.Paths == nil {
		return nil, fmt.Errorf("%w: no paths", ErrInvalidCatalogue)
	}

	catalogue := &Catalogue{
		Version:    doc.Info.Version,
		BasePath:   strings.TrimSuffix(doc.BasePath, "/"),
		Operations: make(map[string]OperationSpec),
	}

	for path, item := range doc.Paths {
		var shared []Parameter

		if raw, ok := item["parameters"]; ok {
			err = json.Unmarshal(raw, &shared)
			if err != nil {
				return nil, fmt.Errorf("%w: parameters of %s: %w", ErrInvalidCatalogue, path, err)
			}
		}

		for key, raw := range item {
			method, ok := swaggerMethods[key]
			if !ok {
				continue
			}

			var op swaggerOperation

			err = json.Unmarshal(raw, &op)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %w", ErrInvalidCatalogue, method, path, err)
			}

			id := op.OperationID
			if id == "" {
				id = method + " " + path
			}

			catalogue.Operations[id] = OperationSpec{
				ID:         id,
				Method:     method,
				Path:       catalogue.BasePath + path,
				Summary:    op.Summary,
				Tags:       op.Tags,
				Parameters: append(append([]Parameter{}, shared...), op.Parameters...),
			}
		}
	}

	return catalogue, nil
}
