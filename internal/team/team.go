package team

import "fmt"

// Role identifies what kind of work an agent performs. The set is closed:
// every role has an entry in the policy table below.
type Role string

const (
	RoleOrchestrator   Role = "orchestrator"
	RoleProjectManager Role = "project-manager"
	RoleDeveloper      Role = "developer"
	RoleQAEngineer     Role = "qa-engineer"
	RoleDevOps         Role = "devops"
	RoleCodeReviewer   Role = "code-reviewer"
	RoleResearcher     Role = "researcher"
	RoleDocWriter      Role = "documentation-writer"
)

// AllRoles lists every valid role in deployment order: the orchestrator
// first, then management, then delivery roles, then the supporting roles.
var AllRoles = []Role{
	RoleOrchestrator,
	RoleProjectManager,
	RoleDeveloper,
	RoleQAEngineer,
	RoleDevOps,
	RoleCodeReviewer,
	RoleResearcher,
	RoleDocWriter,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := policies[r]
	return ok
}

// Descriptor declares a single agent in the team structure. Descriptors are
// immutable once deployment begins.
type Descriptor struct {
	ID               string   `yaml:"id"`
	Role             Role     `yaml:"role"`
	ReportsTo        string   `yaml:"reports_to,omitempty"`
	Responsibilities []string `yaml:"responsibilities,omitempty"`
	Constraints      []string `yaml:"constraints,omitempty"`
	FocusAreas       []string `yaml:"focus_areas,omitempty"`
}

// ValidateForest checks that the descriptors form a forest rooted at exactly
// one orchestrator: ids unique, roles known, every reports_to reference
// resolvable, and no supervisor cycles.
func ValidateForest(members []Descriptor) error {
	byID := make(map[string]Descriptor, len(members))
	orchestrators := 0
	for _, m := range members {
		if m.ID == "" {
			return fmt.Errorf("team member with empty id")
		}
		if _, dup := byID[m.ID]; dup {
			return fmt.Errorf("duplicate agent id %q", m.ID)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("agent %s has unknown role %q", m.ID, m.Role)
		}
		if m.Role == RoleOrchestrator {
			orchestrators++
		}
		byID[m.ID] = m
	}
	if orchestrators != 1 {
		return fmt.Errorf("team must have exactly one orchestrator, found %d", orchestrators)
	}

	for _, m := range members {
		if m.ReportsTo == "" {
			continue
		}
		if _, ok := byID[m.ReportsTo]; !ok {
			return fmt.Errorf("agent %s reports to unknown agent %q", m.ID, m.ReportsTo)
		}
		// Walk the supervisor chain; revisiting m.ID means a cycle.
		seen := map[string]bool{m.ID: true}
		cur := m.ReportsTo
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("supervisor cycle involving agent %s", m.ID)
			}
			seen[cur] = true
			cur = byID[cur].ReportsTo
		}
	}
	return nil
}

// DeploymentOrder returns the members sorted by role rank (orchestrator
// first, then project managers, developers, QA, and the remaining roles),
// preserving declaration order within a role.
func DeploymentOrder(members []Descriptor) []Descriptor {
	ordered := make([]Descriptor, 0, len(members))
	for _, role := range AllRoles {
		for _, m := range members {
			if m.Role == role {
				ordered = append(ordered, m)
			}
		}
	}
	return ordered
}
