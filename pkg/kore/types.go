package kore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
)

// Status values reported by the Kore API.
const (
	StatusSuccess  = constants.StatusSuccess
	StatusFailure  = constants.StatusFailure
	StatusPending  = constants.StatusPending
	StatusDeleting = constants.StatusDeleting
)

// AllTeams is the allocation sentinel meaning every team.
const AllTeams = constants.AllTeams

// IsTerminalStatus reports whether no further transition is expected
// without a fresh user action.
func IsTerminalStatus(status string) bool {
	return status == StatusSuccess || status == StatusFailure
}

// ObjectMeta identifies a resource.
type ObjectMeta struct {
	Name              string            `json:"name,omitempty"              yaml:"name,omitempty"`
	Namespace         string            `json:"namespace,omitempty"         yaml:"namespace,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"            yaml:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty"       yaml:"annotations,omitempty"`
	ResourceVersion   string            `json:"resourceVersion,omitempty"   yaml:"resourceVersion,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	DeletionTimestamp *time.Time        `json:"deletionTimestamp,omitempty" yaml:"deletionTimestamp,omitempty"`
}

// Condition is a single status condition.
type Condition struct {
	Type    string `json:"type,omitempty"    yaml:"type,omitempty"`
	Status  string `json:"status,omitempty"  yaml:"status,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Detail  string `json:"detail,omitempty"  yaml:"detail,omitempty"`
}

// Status is the status sub-document of a resource.
type Status struct {
	Status     string      `json:"status,omitempty"     yaml:"status,omitempty"`
	Message    string      `json:"message,omitempty"    yaml:"message,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Resource is a Kore API document. Spec is kept opaque; the client never
// mutates it outside of explicit update calls.
type Resource struct {
	APIVersion string          `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Kind       string          `json:"kind,omitempty"       yaml:"kind,omitempty"`
	Metadata   ObjectMeta      `json:"metadata"             yaml:"metadata"`
	Spec       json.RawMessage `json:"spec,omitempty"       yaml:"-"`
	Status     *Status         `json:"status,omitempty"     yaml:"status,omitempty"`

	// Deleted is set locally once a poller observes the resource is gone.
	Deleted bool `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// StatusValue returns status.status or "" when the resource has no status.
func (r *Resource) StatusValue() string {
	if r == nil || r.Status == nil {
		return ""
	}

	return r.Status.Status
}

// IsTerminal reports whether the resource has reached Success or Failure.
func (r *Resource) IsTerminal() bool {
	return IsTerminalStatus(r.StatusValue())
}

// IsEmpty reports whether the document carries no identity at all, which the
// API returns for a resource that no longer exists.
func (r *Resource) IsEmpty() bool {
	return r == nil || (r.Kind == "" && r.Metadata.Name == "")
}

// Ref returns a reference to this resource.
func (r *Resource) Ref() ResourceRef {
	group, version := splitAPIVersion(r.APIVersion)

	return ResourceRef{
		Group:     group,
		Version:   version,
		Kind:      r.Kind,
		Namespace: r.Metadata.Namespace,
		Name:      r.Metadata.Name,
	}
}

// ConditionDetails flattens status conditions into human readable lines.
func (r *Resource) ConditionDetails() []string {
	if r == nil || r.Status == nil {
		return nil
	}

	var details []string

	if r.Status.Message != "" {
		details = append(details, r.Status.Message)
	}

	for _, cond := range r.Status.Conditions {
		line := cond.Message
		if cond.Detail != "" {
			line = strings.TrimSpace(line + " " + cond.Detail)
		}

		if line != "" {
			details = append(details, line)
		}
	}

	return details
}

// ResourceRef identifies a resource owned by the Kore API.
type ResourceRef struct {
	Group     string `json:"group"               yaml:"group"`
	Version   string `json:"version"             yaml:"version"`
	Kind      string `json:"kind"                yaml:"kind"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name      string `json:"name"                yaml:"name"`
}

// ResourceList is a list response.
type ResourceList[T any] struct {
	Items []T `json:"items" yaml:"items"`
}

func splitAPIVersion(apiVersion string) (string, string) {
	group, version, found := strings.Cut(apiVersion, "/")
	if !found {
		return "", apiVersion
	}

	return group, version
}
