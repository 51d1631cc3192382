// Package audit records security-relevant events: session issuance,
// permission checks and denials, and every mutation of organizations,
// members, invitations, roles, and resources.
//
// Loggers implement the Logger interface. DBLogger buffers and batches
// writes to a database table, FileLogger appends NDJSON to a file, and
// MultiLogger fans out to several sinks at once. Handlers fetch the logger
// from the request context via FromContext; when none is configured a
// no-op logger is returned so call sites never nil-check.
package audit
