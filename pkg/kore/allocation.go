package kore

import (
	"fmt"
	"slices"
	"strings"
)

// AllocationSpec describes which teams may consume a resource.
type AllocationSpec struct {
	Name     string      `json:"name"     yaml:"name"`
	Summary  string      `json:"summary"  yaml:"summary"`
	Resource ResourceRef `json:"resource" yaml:"resource"`
	Teams    []string    `json:"teams"    yaml:"teams"`
}

// Allocation associates a resource with a set of consuming teams.
type Allocation struct {
	APIVersion string         `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Kind       string         `json:"kind,omitempty"       yaml:"kind,omitempty"`
	Metadata   ObjectMeta     `json:"metadata"             yaml:"metadata"`
	Spec       AllocationSpec `json:"spec"                 yaml:"spec"`
	Status     *Status        `json:"status,omitempty"     yaml:"status,omitempty"`
}

// AllocationName returns the deterministic name of the allocation that
// shares the resource identified by kind and name.
func AllocationName(kind, name string) string {
	return strings.ToLower(kind) + "-" + name
}

// NewAllocation builds an allocation for the resource. An empty team list
// allocates to every team.
func NewAllocation(owner string, resource *Resource, summary string, teams []string) *Allocation {
	if len(teams) == 0 {
		teams = []string{AllTeams}
	}

	return &Allocation{
		APIVersion: "config.kore.appvia.io/v1",
		Kind:       "Allocation",
		Metadata: ObjectMeta{
			Name:      AllocationName(resource.Kind, resource.Metadata.Name),
			Namespace: owner,
		},
		Spec: AllocationSpec{
			Name:     resource.Metadata.Name,
			Summary:  summary,
			Resource: resource.Ref(),
			Teams:    slices.Clone(teams),
		},
	}
}

// AllTeams reports whether the allocation uses the all-teams sentinel.
func (a *Allocation) AllTeams() bool {
	return a != nil && slices.Contains(a.Spec.Teams, AllTeams)
}

// HasTeam reports whether the team may consume the allocated resource.
func (a *Allocation) HasTeam(team string) bool {
	if a == nil {
		return false
	}

	return a.AllTeams() || slices.Contains(a.Spec.Teams, team)
}

// TeamsSummary renders the team list for display.
func (a *Allocation) TeamsSummary() string {
	switch {
	case a == nil || len(a.Spec.Teams) == 0:
		return "none"
	case a.AllTeams():
		return "all teams"
	default:
		return fmt.Sprintf("%d team(s): %s", len(a.Spec.Teams), strings.Join(a.Spec.Teams, ", "))
	}
}
