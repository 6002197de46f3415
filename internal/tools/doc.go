// Package tools implements the exec resources coven-link serves locally.
//
// Every executor works inside a Workspace root. Relative paths are joined to
// the root and absolute paths must already lie inside it.
//
// Register binds read, write, delete, ls, grep, shell and the streaming shell
// to an exec.Registry. Resources without a local tool are left unregistered
// and the exec manager answers them with a "No handler found" throw.
package tools
