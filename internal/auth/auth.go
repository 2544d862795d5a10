/*

This file implements the access-control collaborator as an injected capability,
keeping the investment executor testable without a real role subsystem.

*/

package auth

import (
	"sync"

	"github.com/meridianlabs/pvm/internal/types"
)

// Authorizer answers yes/no authorization checks for privileged operations.
type Authorizer interface {
	IsAllowed(caller types.Address, op types.Operation) bool
}

type roleKey struct {
	holder types.Address
	op     types.Operation
}

// RoleTable is a static role-based Authorizer: a caller is allowed when a
// role grant exists for (caller, operation).
type RoleTable struct {
	mu     sync.RWMutex
	grants map[roleKey]struct{}
}

// NewRoleTable creates an empty role table.
func NewRoleTable() *RoleTable {
	return &RoleTable{grants: make(map[roleKey]struct{})}
}

// Grant allows the holder to perform the operation.
func (r *RoleTable) Grant(holder types.Address, op types.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[roleKey{holder: holder, op: op}] = struct{}{}
}

// Revoke removes a previously granted role.
func (r *RoleTable) Revoke(holder types.Address, op types.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, roleKey{holder: holder, op: op})
}

// IsAllowed reports whether the caller holds the role for the operation.
func (r *RoleTable) IsAllowed(caller types.Address, op types.Operation) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[roleKey{holder: caller, op: op}]
	return ok
}
