// Package orgac implements per-organization dynamic access control: custom
// resources and roles stored per organization, a cached statement loader,
// and a permission gate over both pre-defined and custom roles.
//
// Resources define which actions exist; roles grant subsets of them. A
// member's role string may name several roles separated by commas, and a
// permission check passes if any one of them grants everything requested.
// Custom resources shadow same-named default resources when the
// organization's statements are merged.
package orgac
