// Package orgs manages organizations and the people in them: creation and
// deletion with full cleanup of access-control state, membership with the
// owner-cannot-leave rule, and email invitations with expiry.
package orgs
