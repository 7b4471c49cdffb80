// Package context carries request scoped values: the trace id and the
// authenticated identity. It is imported as context_ next to the standard
// library package.
package context

type contextKey string
