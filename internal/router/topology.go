package router

// CommunicationModel is the policy governing which agent pairs may exchange
// messages.
type CommunicationModel string

const (
	ModelHubAndSpoke  CommunicationModel = "hub-and-spoke"
	ModelHierarchical CommunicationModel = "hierarchical"
	ModelMesh         CommunicationModel = "mesh"
)

func (m CommunicationModel) Valid() bool {
	switch m {
	case ModelHubAndSpoke, ModelHierarchical, ModelMesh:
		return true
	}
	return false
}

// allowed applies the topology predicate for the active model. Caller holds
// r.mu.
//
//   - mesh: always permitted.
//   - hub-and-spoke: supervisor/subordinate in either direction, peers under
//     the same supervisor, or either endpoint has no supervisor.
//   - hierarchical: supervisor/subordinate in either direction, or the
//     sender has no supervisor. Peer-to-peer between supervised agents is
//     not permitted.
func (r *Router) allowed(from, to string) bool {
	switch r.model {
	case ModelMesh:
		return true
	case ModelHubAndSpoke:
		fromSup := r.supervisors[from]
		toSup := r.supervisors[to]
		if fromSup == "" || toSup == "" {
			return true
		}
		return toSup == from || fromSup == to || fromSup == toSup
	case ModelHierarchical:
		fromSup := r.supervisors[from]
		if fromSup == "" {
			return true
		}
		return r.supervisors[to] == from || fromSup == to
	}
	return false
}
