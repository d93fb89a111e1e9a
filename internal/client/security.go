package client

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// SecurityClient implements kore.SecurityClient.
type SecurityClient struct {
	req *requester
}

// NewSecurityClient creates a new security client.
func NewSecurityClient(req *requester) *SecurityClient {
	return &SecurityClient{req: req}
}

// Overview implements kore.SecurityClient.Overview.
func (c *SecurityClient) Overview(ctx context.Context) (*kore.SecurityOverview, error) {
	data, err := c.req.do(ctx, nethttp.MethodGet, apiPath("securityoverview"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting security overview: %w", err)
	}

	return decode[kore.SecurityOverview](data)
}

// ListScans implements kore.SecurityClient.ListScans.
func (c *SecurityClient) ListScans(ctx context.Context, latestOnly bool) ([]kore.SecurityScan, error) {
	query := url.Values{}
	if latestOnly {
		query.Set("latestOnly", "true")
	}

	data, err := c.req.do(ctx, nethttp.MethodGet, apiPath("securityscans"), query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing security scans: %w", err)
	}

	return decodeList[kore.SecurityScan](data)
}

// GetScan implements kore.SecurityClient.GetScan.
func (c *SecurityClient) GetScan(ctx context.Context, id uint64) (*kore.SecurityScan, error) {
	data, err := c.req.do(ctx, nethttp.MethodGet, apiPath("securityscans", strconv.FormatUint(id, 10)), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting security scan %d: %w", id, err)
	}

	return decode[kore.SecurityScan](data)
}
