package models

import id "canopy/pkg/domain"

// Role is the capability level of a caller the identity provider vouched for.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleVerifier    Role = "verifier"
)

// Actor is the verified caller identity supplied by the external identity
// provider. The pipeline trusts it as already authenticated.
type Actor struct {
	ID   id.ActorID
	Name string
	Role Role
}

// CanVerify reports whether the actor holds the verifier capability required
// for approve/reject decisions.
func (a Actor) CanVerify() bool {
	return a.Role == RoleVerifier
}
