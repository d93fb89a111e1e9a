package kore_test

import (
	"net/http"
	"testing"

	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swaggerDoc = `{
  "swagger": "2.0",
  "basePath": "/api/v1alpha1/",
  "info": {"version": "v0.3.1"},
  "paths": {
    "/teams": {
      "get": {"operationId": "ListTeams", "summary": "Lists teams", "tags": ["teams"]}
    },
    "/teams/{team}": {
      "parameters": [{"name": "team", "in": "path", "required": true}],
      "get": {"operationId": "GetTeam"},
      "put": {
        "operationId": "UpdateTeam",
        "parameters": [{"name": "body", "in": "body", "required": true}]
      },
      "delete": {}
    }
  }
}`

func TestParseCatalogue(t *testing.T) {
	t.Parallel()

	catalogue, err := kore.ParseCatalogue([]byte(swaggerDoc))
	require.NoError(t, err)

	assert.Equal(t, "v0.3.1", catalogue.Version)
	assert.Equal(t, "/api/v1alpha1", catalogue.BasePath)
	assert.Equal(t,
		[]string{"DELETE /teams/{team}", "GetTeam", "ListTeams", "UpdateTeam"},
		catalogue.OperationIDs())

	list := catalogue.Operations["ListTeams"]
	assert.Equal(t, http.MethodGet, list.Method)
	assert.Equal(t, "/api/v1alpha1/teams", list.Path)
	assert.Equal(t, "Lists teams", list.Summary)
	assert.Equal(t, []string{"teams"}, list.Tags)
	assert.Empty(t, list.PathParams())

	update := catalogue.Operations["UpdateTeam"]
	assert.Equal(t, http.MethodPut, update.Method)
	assert.Equal(t, "/api/v1alpha1/teams/{team}", update.Path)
	assert.Len(t, update.Parameters, 2)
	assert.Equal(t, []string{"team"}, update.PathParams())

	unnamed := catalogue.Operations["DELETE /teams/{team}"]
	assert.Equal(t, http.MethodDelete, unnamed.Method)
	assert.Equal(t, []string{"team"}, unnamed.PathParams())
}

func TestParseCatalogue_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "<html></html>"},
		{name: "no paths", doc: `{"swagger":"2.0"}`},
		{name: "bad operation", doc: `{"paths":{"/teams":{"get":"nope"}}}`},
		{name: "bad shared parameters", doc: `{"paths":{"/teams":{"parameters":{}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := kore.ParseCatalogue([]byte(tt.doc))
			require.ErrorIs(t, err, kore.ErrInvalidCatalogue)
		})
	}
}
