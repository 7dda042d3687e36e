// Package httputil provides small helpers for writing consistent JSON
// responses from HTTP handlers.
package httputil
