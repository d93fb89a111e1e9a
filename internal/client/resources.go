package client

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// resourceGroup implements List/Get/Update/Delete for one collection path.
type resourceGroup struct {
	req      *requester
	segments []string
	noun     string
}

func newResourceGroup(req *requester, noun string, segments ...string) *resourceGroup {
	return &resourceGroup{req: req, segments: segments, noun: noun}
}

func (g *resourceGroup) itemPath(name string) string {
	return apiPath(append(append([]string{}, g.segments...), name)...)
}

func (g *resourceGroup) list(ctx context.Context, query url.Values) ([]kore.Resource, error) {
	data, err := g.req.do(ctx, nethttp.MethodGet, apiPath(g.segments...), query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", g.noun, err)
	}

	return decodeList[kore.Resource](data)
}

// List implements List on the typed group interfaces.
func (g *resourceGroup) List(ctx context.Context) ([]kore.Resource, error) {
	return g.list(ctx, nil)
}

// Get implements Get on the typed group interfaces; nil when absent.
func (g *resourceGroup) Get(ctx context.Context, name string) (*kore.Resource, error) {
	data, err := g.req.do(ctx, nethttp.MethodGet, g.itemPath(name), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", g.noun, name, err)
	}

	return decode[kore.Resource](data)
}

// Update implements Update on the typed group interfaces.
func (g *resourceGroup) Update(ctx context.Context, resource *kore.Resource) (*kore.Resource, error) {
	if resource == nil || resource.Metadata.Name == "" {
		return nil, constants.ErrManifestMissingName
	}

	data, err := g.req.do(ctx, nethttp.MethodPut, g.itemPath(resource.Metadata.Name), nil, resource)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", g.noun, resource.Metadata.Name, err)
	}

	return decode[kore.Resource](data)
}

// Delete implements Delete on the typed group interfaces.
func (g *resourceGroup) Delete(ctx context.Context, name string) (*kore.Resource, error) {
	data, err := g.req.do(ctx, nethttp.MethodDelete, g.itemPath(name), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("deleting %s %s: %w", g.noun, name, err)
	}

	return decode[kore.Resource](data)
}

// TeamsClient implements kore.TeamsClient.
type TeamsClient struct {
	*resourceGroup
}

// NewTeamsClient creates a new teams client.
func NewTeamsClient(req *requester) *TeamsClient {
	return &TeamsClient{resourceGroup: newResourceGroup(req, "team", "teams")}
}

// ClustersClient implements kore.ClustersClient.
type ClustersClient struct {
	*resourceGroup
}

// NewClustersClient creates a clusters client scoped to a team.
func NewClustersClient(req *requester, team string) *ClustersClient {
	return &ClustersClient{resourceGroup: newResourceGroup(req, "cluster", "teams", team, "clusters")}
}

// CredentialsClient implements kore.CredentialsClient for one credential
// kind, e.g. gkecredentials.
type CredentialsClient struct {
	*resourceGroup
}

// NewCredentialsClient creates a credentials client scoped to a team.
func NewCredentialsClient(req *requester, team, kind string) *CredentialsClient {
	kind = strings.ToLower(kind)

	return &CredentialsClient{resourceGroup: newResourceGroup(req, kind, "teams", team, kind)}
}

// PlansClient implements kore.PlansClient.
type PlansClient struct {
	group *resourceGroup
}

// NewPlansClient creates a new plans client.
func NewPlansClient(req *requester) *PlansClient {
	return &PlansClient{group: newResourceGroup(req, "plan", "plans")}
}

// List implements kore.PlansClient.List. An empty kind lists every plan.
func (c *PlansClient) List(ctx context.Context, kind string) ([]kore.Resource, error) {
	return c.group.list(ctx, kindQuery(kind))
}

// Get implements kore.PlansClient.Get.
func (c *PlansClient) Get(ctx context.Context, name string) (*kore.Resource, error) {
	return c.group.Get(ctx, name)
}

// Update implements kore.PlansClient.Update.
func (c *PlansClient) Update(ctx context.Context, plan *kore.Resource) (*kore.Resource, error) {
	return c.group.Update(ctx, plan)
}

// Delete implements kore.PlansClient.Delete.
func (c *PlansClient) Delete(ctx context.Context, name string) (*kore.Resource, error) {
	return c.group.Delete(ctx, name)
}

// PlanPoliciesClient implements kore.PlanPoliciesClient.
type PlanPoliciesClient struct {
	group *resourceGroup
}

// NewPlanPoliciesClient creates a new plan policies client.
func NewPlanPoliciesClient(req *requester) *PlanPoliciesClient {
	return &PlanPoliciesClient{group: newResourceGroup(req, "plan policy", "planpolicies")}
}

// List implements kore.PlanPoliciesClient.List.
func (c *PlanPoliciesClient) List(ctx context.Context, kind string) ([]kore.Resource, error) {
	return c.group.list(ctx, kindQuery(kind))
}

// Get implements kore.PlanPoliciesClient.Get.
func (c *PlanPoliciesClient) Get(ctx context.Context, name string) (*kore.Resource, error) {
	return c.group.Get(ctx, name)
}

// Update implements kore.PlanPoliciesClient.Update.
func (c *PlanPoliciesClient) Update(ctx context.Context, policy *kore.Resource) (*kore.Resource, error) {
	return c.group.Update(ctx, policy)
}

// Delete implements kore.PlanPoliciesClient.Delete.
func (c *PlanPoliciesClient) Delete(ctx context.Context, name string) (*kore.Resource, error) {
	return c.group.Delete(ctx, name)
}

func kindQuery(kind string) url.Values {
	if kind == "" {
		return nil
	}

	return url.Values{"kind": []string{kind}}
}

// ResourcesClient implements kore.ResourcesClient over arbitrary API paths.
type ResourcesClient struct {
	req *requester
}

// NewResourcesClient creates a new path-addressed resources client.
func NewResourcesClient(req *requester) *ResourcesClient {
	return &ResourcesClient{req: req}
}

// resolvePath accepts paths with or without the API base path.
func resolvePath(path string) string {
	if strings.HasPrefix(path, constants.APIBasePath+"/") {
		return path
	}

	return constants.APIBasePath + "/" + strings.TrimPrefix(path, "/")
}

// Get implements kore.ResourcesClient.Get. A 404 yields nil; an empty
// document decodes to an empty resource.
func (c *ResourcesClient) Get(ctx context.Context, path string) (*kore.Resource, error) {
	data, err := c.req.do(ctx, nethttp.MethodGet, resolvePath(path), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}

	return decode[kore.Resource](data)
}

// Update implements kore.ResourcesClient.Update.
func (c *ResourcesClient) Update(ctx context.Context, path string, resource *kore.Resource) (*kore.Resource, error) {
	data, err := c.req.do(ctx, nethttp.MethodPut, resolvePath(path), nil, resource)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", path, err)
	}

	return decode[kore.Resource](data)
}
