package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	. "github.com/fivetwenty-io/kore-client/internal/client"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogue = `{
  "swagger": "2.0",
  "basePath": "/api/v1alpha1",
  "info": {"version": "v0.2.0"},
  "paths": {
    "/teams/{team}/clusters/{name}": {
      "parameters": [{"name": "team", "in": "path", "required": true}],
      "get": {
        "operationId": "GetCluster",
        "parameters": [{"name": "name", "in": "path", "required": true}]
      },
      "put": {
        "operationId": "UpdateCluster",
        "parameters": [{"name": "name", "in": "path", "required": true}]
      }
    },
    "/plans": {
      "get": {
        "operationId": "ListPlans",
        "parameters": [{"name": "kind", "in": "query"}]
      }
    }
  }
}`

func newCatalogueClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	client := newTestClient(t, handler)

	catalogue, err := kore.ParseCatalogue([]byte(testCatalogue))
	require.NoError(t, err)

	client.UseCatalogue(catalogue)

	return client
}

func TestCatalogueOperations(t *testing.T) {
	t.Parallel()

	t.Run("every catalogue entry is wrapped", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {})

		assert.Equal(t, []string{"GetCluster", "ListPlans", "UpdateCluster"}, client.Operations().IDs())
		assert.Equal(t, "v0.2.0", client.Catalogue().Version)
	})

	t.Run("path params are substituted and the body is unwrapped", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1alpha1/teams/devs/clusters/c1", r.URL.Path)
			assert.Empty(t, r.URL.RawQuery)
			writeJSON(t, w, http.StatusOK, map[string]string{"kind": "Cluster"})
		})

		body, err := client.Operations().Call(context.Background(), "GetCluster", &kore.OperationInput{
			Params: map[string]string{"team": "devs", "name": "c1"},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"Cluster"}`, string(body))
	})

	t.Run("remaining params become the query", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1alpha1/plans", r.URL.Path)
			assert.Equal(t, "kind=GKE", r.URL.RawQuery)
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"items": []interface{}{}})
		})

		_, err := client.Operations().Call(context.Background(), "ListPlans", &kore.OperationInput{
			Params: map[string]string{"kind": "GKE"},
		})
		require.NoError(t, err)
	})

	t.Run("body is sent", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)

			var doc map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
			assert.Equal(t, "Cluster", doc["kind"])

			writeJSON(t, w, http.StatusOK, doc)
		})

		_, err := client.Operations().Call(context.Background(), "UpdateCluster", &kore.OperationInput{
			Params: map[string]string{"team": "devs", "name": "c1"},
			Body:   json.RawMessage(`{"kind":"Cluster"}`),
		})
		require.NoError(t, err)
	})

	t.Run("missing path param fails before any request", func(t *testing.T) {
		t.Parallel()

		var hits int32

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
		})

		_, err := client.Operations().Call(context.Background(), "GetCluster", &kore.OperationInput{
			Params: map[string]string{"team": "devs"},
		})
		require.ErrorIs(t, err, kore.ErrMissingPathParam)
		assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	})

	t.Run("404 resolves to nil", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		body, err := client.Operations().Call(context.Background(), "GetCluster", &kore.OperationInput{
			Params: map[string]string{"team": "devs", "name": "gone"},
		})
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("unknown operation", func(t *testing.T) {
		t.Parallel()

		client := newCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.Operations().Call(context.Background(), "DeleteEverything", nil)
		require.ErrorIs(t, err, kore.ErrUnknownOperation)
	})
}

func TestFetchCatalogue(t *testing.T) {
	t.Parallel()

	t.Run("returns the raw document", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/swagger.json", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(testCatalogue))
		})

		data, err := client.FetchCatalogue(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, testCatalogue, string(data))
	})

	t.Run("a missing document is an error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.FetchCatalogue(context.Background())
		require.Error(t, err)
		assert.True(t, kore.IsNotFound(err))
	})
}
