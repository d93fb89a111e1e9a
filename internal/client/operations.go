package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/http"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// NewCatalogueOperations builds one raw operation per catalogue entry.
func NewCatalogueOperations(httpClient *http.Client, catalogue *kore.Catalogue) map[string]kore.RawOperation {
	ops := make(map[string]kore.RawOperation, len(catalogue.Operations))

	for id, spec := range catalogue.Operations {
		ops[id] = newRawOperation(httpClient, spec)
	}

	return ops
}

func newRawOperation(httpClient *http.Client, spec kore.OperationSpec) kore.RawOperation {
	pathParams := make(map[string]bool)
	for _, name := range spec.PathParams() {
		pathParams[name] = true
	}

	return func(ctx context.Context, in *kore.OperationInput) (*kore.Response, error) {
		if in == nil {
			in = &kore.OperationInput{}
		}

		path, err := expandPath(spec.Path, in.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.ID, err)
		}

		query := url.Values{}

		for name, value := range in.Params {
			if !pathParams[name] && !strings.Contains(spec.Path, "{"+name+"}") {
				query.Set(name, value)
			}
		}

		resp, err := httpClient.Do(ctx, &http.Request{
			Method: spec.Method,
			Path:   path,
			Query:  query,
			Body:   in.Body,
		})
		if err != nil {
			return nil, err
		}

		return &kore.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, nil
	}
}

// expandPath substitutes every {name} placeholder from params.
func expandPath(template string, params map[string]string) (string, error) {
	var builder strings.Builder

	rest := template

	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			builder.WriteString(rest)

			return builder.String(), nil
		}

		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			builder.WriteString(rest)

			return builder.String(), nil
		}

		name := rest[start+1 : start+end]

		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("%w: %s", kore.ErrMissingPathParam, name)
		}

		builder.WriteString(rest[:start])
		builder.WriteString(url.PathEscape(value))

		rest = rest[start+end+1:]
	}
}
