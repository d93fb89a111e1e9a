package client

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// AllocationsClient implements kore.AllocationsClient.
type AllocationsClient struct {
	req  *requester
	team string
}

// NewAllocationsClient creates an allocations client for the owning team.
func NewAllocationsClient(req *requester, team string) *AllocationsClient {
	return &AllocationsClient{req: req, team: team}
}

func (c *AllocationsClient) path(name ...string) string {
	return apiPath(append([]string{"teams", c.team, "allocations"}, name...)...)
}

// List implements kore.AllocationsClient.List.
func (c *AllocationsClient) List(ctx context.Context) ([]kore.Allocation, error) {
	data, err := c.req.do(ctx, nethttp.MethodGet, c.path(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing allocations of %s: %w", c.team, err)
	}

	return decodeList[kore.Allocation](data)
}

// Get implements kore.AllocationsClient.Get.
func (c *AllocationsClient) Get(ctx context.Context, name string) (*kore.Allocation, error) {
	data, err := c.req.do(ctx, nethttp.MethodGet, c.path(name), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting allocation %s: %w", name, err)
	}

	return decode[kore.Allocation](data)
}

// Update implements kore.AllocationsClient.Update.
func (c *AllocationsClient) Update(ctx context.Context, allocation *kore.Allocation) (*kore.Allocation, error) {
	if allocation == nil || allocation.Metadata.Name == "" {
		return nil, constants.ErrManifestMissingName
	}

	data, err := c.req.do(ctx, nethttp.MethodPut, c.path(allocation.Metadata.Name), nil, allocation)
	if err != nil {
		return nil, fmt.Errorf("updating allocation %s: %w", allocation.Metadata.Name, err)
	}

	return decode[kore.Allocation](data)
}

// Delete implements kore.AllocationsClient.Delete.
func (c *AllocationsClient) Delete(ctx context.Context, name string) (*kore.Allocation, error) {
	data, err := c.req.do(ctx, nethttp.MethodDelete, c.path(name), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("deleting allocation %s: %w", name, err)
	}

	return decode[kore.Allocation](data)
}

// AllocationFor implements kore.AllocationsClient.AllocationFor.
func (c *AllocationsClient) AllocationFor(ctx context.Context, kind, name string) (*kore.Allocation, error) {
	return c.Get(ctx, kore.AllocationName(kind, name))
}

// Allocate implements kore.AllocationsClient.Allocate. The returned
// allocation is re-read after the write, never the locally built copy.
func (c *AllocationsClient) Allocate(ctx context.Context, resource *kore.Resource, teams []string) (*kore.Allocation, error) {
	if resource == nil || resource.Metadata.Name == "" {
		return nil, constants.ErrManifestMissingName
	}

	if resource.Kind == "" {
		return nil, constants.ErrManifestMissingKind
	}

	allocation := kore.NewAllocation(c.team, resource, resourceSummary(resource), teams)

	_, err := c.Update(ctx, allocation)
	if err != nil {
		return nil, err
	}

	return c.Get(ctx, allocation.Metadata.Name)
}

// resourceSummary uses spec.summary when the resource carries one.
func resourceSummary(resource *kore.Resource) string {
	var spec struct {
		Summary string `json:"summary"`
	}

	if len(resource.Spec) > 0 && json.Unmarshal(resource.Spec, &spec) == nil && spec.Summary != "" {
		return spec.Summary
	}

	return resource.Metadata.Name
}
