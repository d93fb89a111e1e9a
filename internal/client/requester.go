package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/internal/http"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// requester runs typed group calls through the same translation as the
// decorated catalogue operations.
type requester struct {
	httpClient *http.Client
	hooks      kore.DecoratorHooks
}

// do returns the response body, or nil when the API answered 404.
func (r *requester) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	resp, err := r.httpClient.Do(ctx, &http.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
	})
	if err != nil {
		return nil, r.hooks.Translate(ctx, err)
	}

	return resp.Body, nil
}

// decode unmarshals data into a new T. Absent or empty data yields nil.
func decode[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var out T

	err := json.Unmarshal(data, &out)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &out, nil
}

// decodeList unmarshals a list document and returns its items.
func decodeList[T any](data []byte) ([]T, error) {
	list, err := decode[kore.ResourceList[T]](data)
	if err != nil || list == nil {
		return nil, err
	}

	return list.Items, nil
}

// apiPath joins segments under the API base path, escaping each one.
func apiPath(segments ...string) string {
	var builder strings.Builder

	builder.WriteString(constants.APIBasePath)

	for _, segment := range segments {
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}

	return builder.String()
}
