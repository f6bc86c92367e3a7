// Package authz decides whether an identity may access a resolved file
// record. The decision is a pure function of identity, record owner scope,
// admin flag, and the record's exclusion set.
package authz

import "github.com/dpavlovs/filegate/internal/server/models"

// Authorize reports whether the requester may access the record found in
// recordOwner's scope. Rules, in order:
//
//  1. Admins are always allowed.
//  2. Non-admins are allowed for their own records, and for shared records
//     that do not exclude them.
//  3. Everything else is denied.
//
// Callers at the transport boundary must render a deny identically to a
// not-found so file existence never leaks.
func Authorize(rec *models.FileRecord, recordOwner, requester models.OwnerID, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	if recordOwner == requester {
		return true
	}
	if recordOwner == models.SharedOwner && !rec.Excludes(requester) {
		return true
	}
	return false
}
