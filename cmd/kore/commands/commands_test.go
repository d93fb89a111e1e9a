package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/koreclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testSwagger = `{
  "swagger": "2.0",
  "basePath": "/api/v1alpha1",
  "info": {"version": "v0.3.1"},
  "paths": {
    "/teams": {"get": {"operationId": "ListTeams", "summary": "Lists teams", "tags": ["teams"]}},
    "/teams/{team}": {
      "parameters": [{"name": "team", "in": "path", "required": true}],
      "get": {"operationId": "GetTeam", "summary": "Returns a team", "tags": ["teams"]},
      "put": {"operationId": "UpdateTeam", "tags": ["teams"]}
    },
    "/plans": {"get": {"operationId": "ListPlans", "tags": ["plans"]}}
  }
}`

// fakeKore is an in-memory Kore API.
type fakeKore struct {
	mutex     sync.Mutex
	documents map[string][]byte
	// statuses are served in order for GET of the keyed path; the last one
	// repeats.
	statuses map[string][]string
	gets     map[string]int
	puts     map[string]int

	// forbidden paths answer 403 to every request.
	forbidden map[string]bool
}

func newFakeKore(t *testing.T) (*fakeKore, *httptest.Server) {
	t.Helper()

	fake := &fakeKore{
		documents: make(map[string][]byte),
		statuses:  make(map[string][]string),
		gets:      make(map[string]int),
		puts:      make(map[string]int),
		forbidden: make(map[string]bool),
	}

	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)

	return fake, server
}

func (f *fakeKore) put(path string, doc interface{}) {
	data, _ := json.Marshal(doc)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.documents[path] = data
}

func (f *fakeKore) setStatuses(path string, statuses ...string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.statuses[path] = statuses
}

func (f *fakeKore) forbid(path string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.forbidden[path] = true
}

func (f *fakeKore) getCount(path string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.gets[path]
}

func (f *fakeKore) putCount(path string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.puts[path]
}

func (f *fakeKore) serve(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/swagger.json" {
		_, _ = w.Write([]byte(testSwagger))

		return
	}

	if f.forbidden[r.URL.Path] {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":403,"message":"forbidden"}`))

		return
	}

	if r.URL.Path == "/api/v1alpha1/teams/invalid" && r.Method == http.MethodPut {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"message":"invalid team","fieldErrors":[{"field":"spec.summary","message":"is required"}]}`))

		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.documents[r.URL.Path] = body
		f.puts[r.URL.Path]++
		_, _ = w.Write(body)

	case http.MethodGet:
		doc, ok := f.documents[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"not found"}`))

			return
		}

		f.gets[r.URL.Path]++

		if statuses := f.statuses[r.URL.Path]; len(statuses) > 0 {
			index := f.gets[r.URL.Path] - 1
			if index >= len(statuses) {
				index = len(statuses) - 1
			}

			var resource map[string]interface{}
			_ = json.Unmarshal(doc, &resource)
			resource["status"] = map[string]interface{}{
				"status":     statuses[index],
				"conditions": []map[string]string{{"message": "Permission check failed", "detail": "missing roles/owner"}},
			}
			doc, _ = json.Marshal(resource)
		}

		_, _ = w.Write(doc)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// setupConfig points viper at a throwaway config file.
func setupConfig(t *testing.T, values map[string]string) string {
	t.Helper()

	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yml")
	viper.SetConfigFile(path)

	for key, value := range values {
		viper.Set(key, value)
	}

	t.Cleanup(func() {
		viper.Reset()
		_ = koreclient.ResetDefaultSpecLoaders()
	})

	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(bytes.NewReader(nil))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupConfig(t, map[string]string{"output": constants.FormatJSON})

	stdout, _, err := execute(t, NewVersionCommand("1.2.3", "abc", "today"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.2.3","commit":"abc","built":"today"}`, stdout)
}

func TestConfigSetAndShow(t *testing.T) {
	path := setupConfig(t, nil)

	stdout, _, err := execute(t, NewConfigCommand(), "set", "api", "https://kore.example.com")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Set api to https://kore.example.com")

	stdout, _, err = execute(t, NewConfigCommand(), "set", "token", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Set token to ***")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved Config
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, "https://kore.example.com", saved.API)
	assert.Equal(t, "s3cret", saved.Token)

	viper.Set("output", constants.FormatJSON)

	stdout, _, err = execute(t, NewConfigCommand(), "show")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "s3cret")

	var shown Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, "https://kore.example.com", shown.API)
	assert.Equal(t, constants.MaskedSecret, shown.Token)
}

func TestConfigSetUnknownKey(t *testing.T) {
	setupConfig(t, nil)

	_, _, err := execute(t, NewConfigCommand(), "set", "colour", "blue")
	require.ErrorIs(t, err, constants.ErrUnknownConfigKey)
}

func TestLoginCommand_Token(t *testing.T) {
	path := setupConfig(t, nil)

	stdout, _, err := execute(t, NewLoginCommand(), "--api", "kore.example.com", "--token", "abc")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged in to https://kore.example.com")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token: abc")
	assert.Equal(t, "abc", viper.GetString("token"))
}

func TestLoginCommand_ClientCredentials(t *testing.T) {
	path := setupConfig(t, nil)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "kore-cli", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"granted","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	_, _, err := execute(t, NewLoginCommand(),
		"--api", "https://kore.example.com",
		"--client-id", "kore-cli", "--client-secret", "secret",
		"--token-url", tokenServer.URL+"/oauth/token")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved Config
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, "granted", saved.Token)
	assert.Equal(t, "kore-cli", saved.ClientID)
	require.NotNil(t, saved.TokenExpiresAt)
	assert.True(t, saved.TokenExpiresAt.After(time.Now()))
}

func TestLoginCommand_NoEndpoint(t *testing.T) {
	setupConfig(t, nil)

	_, _, err := execute(t, NewLoginCommand(), "--token", "abc")
	require.ErrorIs(t, err, constants.ErrNoAPIConfigured)
}

func TestGetCommand(t *testing.T) {
	fake, server := newFakeKore(t)
	fake.put("/api/v1alpha1/teams/devs", kore.Resource{
		Kind:     "Team",
		Metadata: kore.ObjectMeta{Name: "devs"},
		Status:   &kore.Status{Status: kore.StatusSuccess},
	})

	setupConfig(t, map[string]string{"api": server.URL, "output": constants.FormatTable})

	stdout, _, err := execute(t, NewGetCommand(), "team", "devs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "devs")
	assert.Contains(t, stdout, "Success")

	_, _, err = execute(t, NewGetCommand(), "team", "missing")
	require.ErrorIs(t, err, constants.ErrResourceNotFound)

	_, _, err = execute(t, NewGetCommand(), "widget", "devs")
	require.ErrorIs(t, err, constants.ErrUnsupportedKind)

	_, _, err = execute(t, NewGetCommand(), "cluster", "dev")
	require.ErrorIs(t, err, constants.ErrTeamRequired)
}

func TestGetCommand_Forbidden(t *testing.T) {
	fake, server := newFakeKore(t)
	fake.forbid("/api/v1alpha1/teams/secret")

	setupConfig(t, map[string]string{"api": server.URL})

	_, _, err := execute(t, NewGetCommand(), "team", "secret")
	require.ErrorIs(t, err, constants.ErrAccessDenied)
	assert.True(t, kore.IsForbidden(err))
	assert.Contains(t, err.Error(), "team secret")
}

func TestGetCommand_NoAPI(t *testing.T) {
	setupConfig(t, nil)

	_, _, err := execute(t, NewGetCommand(), "team", "devs")
	require.ErrorIs(t, err, constants.ErrNoAPIConfigured)
}

func TestSpecCommand(t *testing.T) {
	_, server := newFakeKore(t)
	setupConfig(t, map[string]string{"api": server.URL, "output": constants.FormatJSON})

	stdout, _, err := execute(t, NewSpecCommand(), "--tag", "teams")
	require.NoError(t, err)

	var operations []kore.OperationSpec
	require.NoError(t, json.Unmarshal([]byte(stdout), &operations))

	ids := make([]string, 0, len(operations))
	for _, op := range operations {
		ids = append(ids, op.ID)
	}

	assert.Equal(t, []string{"GetTeam", "ListTeams", "UpdateTeam"}, ids)
}

func TestCallCommand(t *testing.T) {
	fake, server := newFakeKore(t)
	fake.put("/api/v1alpha1/teams/devs", kore.Resource{Kind: "Team", Metadata: kore.ObjectMeta{Name: "devs"}})

	setupConfig(t, map[string]string{"api": server.URL, "output": constants.FormatJSON})

	t.Run("found", func(t *testing.T) {
		stdout, _, err := execute(t, NewCallCommand(), "GetTeam", "--param", "team=devs")
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"Team","metadata":{"name":"devs"}}`, stdout)
	})

	t.Run("not found", func(t *testing.T) {
		stdout, _, err := execute(t, NewCallCommand(), "GetTeam", "-p", "team=ops")
		require.NoError(t, err)
		assert.Equal(t, "not found\n", stdout)
	})

	t.Run("validation error", func(t *testing.T) {
		body := filepath.Join(t.TempDir(), "team.yaml")
		require.NoError(t, os.WriteFile(body, []byte("kind: Team\nmetadata:\n  name: invalid\n"), 0o600))

		_, stderr, err := execute(t, NewCallCommand(), "UpdateTeam", "-p", "team=invalid", "--body", body)
		require.Error(t, err)
		assert.True(t, kore.IsValidation(err))
		assert.Contains(t, stderr, "spec.summary: is required")
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, _, err := execute(t, NewCallCommand(), "DeleteEverything")
		require.ErrorIs(t, err, kore.ErrUnknownOperation)
	})

	t.Run("bad param", func(t *testing.T) {
		_, _, err := execute(t, NewCallCommand(), "GetTeam", "-p", "team")
		require.ErrorIs(t, err, constants.ErrInvalidParamFormat)
	})
}

func TestWatchCommand(t *testing.T) {
	minWatchInterval = time.Millisecond

	t.Cleanup(func() { minWatchInterval = constants.MinRefreshInterval })

	fake, server := newFakeKore(t)

	path := "/api/v1alpha1/teams/devs/clusters/dev"
	fake.put(path, kore.Resource{Kind: "Cluster", Metadata: kore.ObjectMeta{Name: "dev", Namespace: "devs"}})
	fake.setStatuses(path, kore.StatusPending, kore.StatusPending, kore.StatusSuccess)

	setupConfig(t, map[string]string{"api": server.URL})

	stdout, _, err := execute(t, NewWatchCommand(), "cluster", "dev", "--team", "devs", "--interval", "10ms")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Cluster/dev: Pending")
	assert.Contains(t, stdout, "Cluster/dev: Success")
	assert.Equal(t, 3, fake.getCount(path))
}

func TestCredentialsApply(t *testing.T) {
	verificationDelay = time.Millisecond

	t.Cleanup(func() { verificationDelay = constants.VerificationDelay })

	manifest := filepath.Join(t.TempDir(), "gke.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`apiVersion: gke.compute.kore.appvia.io/v1alpha1
kind: GKECredentials
metadata:
  name: gke
  namespace: kore-admin
spec:
  project: kore-dev
`), 0o600))

	credsPath := "/api/v1alpha1/teams/kore-admin/gkecredentials/gke"
	allocationPath := "/api/v1alpha1/teams/kore-admin/allocations/gkecredentials-gke"

	t.Run("verified and allocated", func(t *testing.T) {
		fake, server := newFakeKore(t)
		fake.setStatuses(credsPath, kore.StatusPending, kore.StatusSuccess)

		setupConfig(t, map[string]string{"api": server.URL})

		stdout, _, err := execute(t, NewCredentialsCommand(), "apply", "-f", manifest, "--allocate-to", "devs,ops")
		require.NoError(t, err)

		assert.Contains(t, stdout, "Verifying GKECredentials gke")
		assert.Contains(t, stdout, "GKECredentials gke verified")
		assert.Contains(t, stdout, "Allocated gke to 2 team(s): devs, ops")
		assert.Equal(t, 2, fake.getCount(credsPath))
		assert.Equal(t, 1, fake.putCount(allocationPath))
	})

	t.Run("verification fails", func(t *testing.T) {
		fake, server := newFakeKore(t)
		fake.setStatuses(credsPath, kore.StatusFailure)

		setupConfig(t, map[string]string{"api": server.URL})

		stdout, _, err := execute(t, NewCredentialsCommand(), "apply", "-f", manifest, "--allocate-to", "*")
		require.ErrorIs(t, err, constants.ErrVerificationFailed)

		assert.Contains(t, stdout, "could not be verified")
		assert.Contains(t, stdout, "Permission check failed missing roles/owner")
		assert.Equal(t, constants.VerificationMaxAttempts, fake.getCount(credsPath))
		assert.Equal(t, 0, fake.putCount(allocationPath))
	})

	t.Run("continue without verification", func(t *testing.T) {
		fake, server := newFakeKore(t)
		fake.setStatuses(credsPath, kore.StatusFailure)

		setupConfig(t, map[string]string{"api": server.URL})

		stdout, _, err := execute(t, NewCredentialsCommand(), "apply", "-f", manifest,
			"--allocate-to", "*", "--continue-without-verification")
		require.NoError(t, err)

		assert.Contains(t, stdout, "Continuing without verification")
		assert.Contains(t, stdout, "Allocated gke to all teams")
		assert.Equal(t, constants.VerificationMaxAttempts+1, fake.getCount(credsPath))
	})

	t.Run("wrong kind", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "team.yaml")
		require.NoError(t, os.WriteFile(other, []byte("kind: Team\nmetadata:\n  name: devs\n"), 0o600))

		setupConfig(t, map[string]string{"api": "https://kore.example.com"})

		_, _, err := execute(t, NewCredentialsCommand(), "apply", "-f", other)
		require.ErrorIs(t, err, constants.ErrUnsupportedKind)
	})
}

func TestAllocationsCommands(t *testing.T) {
	fake, server := newFakeKore(t)
	fake.put("/api/v1alpha1/teams/kore-admin/ekscredentials/prod", kore.Resource{
		APIVersion: "aws.compute.kore.appvia.io/v1alpha1",
		Kind:       "EKSCredentials",
		Metadata:   kore.ObjectMeta{Name: "prod", Namespace: "kore-admin"},
	})

	setupConfig(t, map[string]string{"api": server.URL, "output": constants.FormatTable})

	_, _, err := execute(t, NewAllocationsCommand(), "get", "EKSCredentials", "prod")
	require.ErrorIs(t, err, constants.ErrResourceNotFound)

	_, _, err = execute(t, NewAllocationsCommand(), "set", "EKSCredentials", "prod")
	require.ErrorIs(t, err, constants.ErrAtLeastOneTeamNeeded)

	stdout, _, err := execute(t, NewAllocationsCommand(), "set", "EKSCredentials", "prod", "--teams", "devs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allocated EKSCredentials prod to 1 team(s): devs")

	stdout, _, err = execute(t, NewAllocationsCommand(), "get", "EKSCredentials", "prod")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ekscredentials-prod")
	assert.Contains(t, stdout, "1 team(s): devs")
}

func TestClampInterval(t *testing.T) {
	assert.Equal(t, constants.MinRefreshInterval, clampInterval(10*time.Millisecond))
	assert.Equal(t, constants.MinRefreshInterval, clampInterval(0))
	assert.Equal(t, 7*time.Second, clampInterval(7*time.Second))
	assert.Equal(t, constants.MaxRefreshInterval, clampInterval(time.Hour))
}

func TestCallStats(t *testing.T) {
	setupConfig(t, map[string]string{"verbose": "true"})

	var buf bytes.Buffer

	collector := callStats(kore.NewSlogLogger(newLogger(&buf)))
	req := &kore.Request{Method: http.MethodGet, Path: "/api/v1alpha1/teams"}

	require.NoError(t, kore.MetricsRequestInterceptor(collector)(context.Background(), req))
	require.NoError(t, kore.MetricsResponseInterceptor(collector)(context.Background(), req,
		&kore.Response{StatusCode: http.StatusForbidden}))

	assert.Contains(t, buf.String(), "API call stats")
	assert.Contains(t, buf.String(), `endpoint="GET /api/v1alpha1/teams"`)
	assert.Contains(t, buf.String(), "requests=1")
	assert.Contains(t, buf.String(), "errors=1")
}

func TestServeMetrics(t *testing.T) {
	metrics, shutdown, err := serveMetrics("127.0.0.1:0", io.Discard)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	shutdown()
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"team=devs", "filter=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "devs", "filter": "a=b"}, params)

	_, err = parseParams([]string{"=devs"})
	require.ErrorIs(t, err, constants.ErrInvalidParamFormat)
}

func TestAllocationTeams(t *testing.T) {
	assert.Nil(t, allocationTeams(nil))
	assert.Nil(t, allocationTeams([]string{"devs", "*"}))
	assert.Equal(t, []string{"devs", "ops"}, allocationTeams([]string{" devs", "", "ops"}))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "https://kore.example.com", normalizeEndpoint("kore.example.com/"))
	assert.Equal(t, "http://localhost:10080", normalizeEndpoint("http://localhost:10080"))
	assert.Empty(t, normalizeEndpoint(""))
}

func TestConfigPersister(t *testing.T) {
	path := setupConfig(t, map[string]string{"api": "https://kore.example.com"})

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	err := NewConfigPersister().UpdateAPIToken("https://kore.example.com/", "renewed", expires)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved Config
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, "renewed", saved.Token)
	require.NotNil(t, saved.TokenExpiresAt)
	assert.True(t, expires.Equal(*saved.TokenExpiresAt))

	// tokens for another API are ignored
	require.NoError(t, NewConfigPersister().UpdateAPIToken("https://other.example.com", "other", expires))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "other")
}
