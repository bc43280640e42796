// Package authapi exposes Reel's credential lifecycle over HTTP.
//
// It owns the JSON envelope, the access/refresh cookie transport, the
// authentication middleware, and the /api/v1/users route group. All domain
// decisions live in the identity and session packages; this package only
// translates between HTTP and those services.
package authapi
