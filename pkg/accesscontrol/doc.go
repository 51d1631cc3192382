// Package accesscontrol implements the statement and role model used by the
// organization permission system.
//
// A Statements value maps resource names to the actions permitted on them,
// e.g. {"organization": ["update", "delete"]}. An AccessControl instance owns
// the full statement dictionary for an application (or for one organization,
// once dynamic resources are merged in) and mints Role values whose grants are
// validated against that dictionary.
//
// Authorization is conjunctive per resource: a request passes only if every
// requested action on every requested resource is granted. A resource absent
// from a role's grants denies all actions on it. Combining multiple roles
// (logical OR) is the caller's concern; see pkg/orgac.
package accesscontrol
