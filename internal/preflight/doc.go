// Package preflight provides readiness checks for the filesystem paths,
// devices and services the attendance daemon depends on.
//
// The CLI "sam status" command prints RunAll results under System Checks.
// Optional features (the report viewer, ntfy) are only reported, never
// treated as fatal.
package preflight
