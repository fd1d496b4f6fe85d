// Package policy decides, before any upstream call, which project a tool
// invocation targets and whether the invocation may mutate state.
//
// Two checks are provided:
//
//   - ResolveProject fills a missing project reference from the configured
//     default and enforces the optional allow-list.
//   - AuthorizeWrite vetoes mutating calls when the server runs read-only.
//
// Both are pure functions of the immutable process configuration and are safe
// for concurrent use.
package policy
