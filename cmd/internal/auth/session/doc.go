// Package session implements Reel's credential model.
//
// A session is a pair of signed JWTs: a short-lived access token used on
// every request, and a long-lived refresh token used only to mint the next
// pair. Each user holds at most one valid refresh credential at a time;
// issuing, rotating, or clearing replaces it atomically, so a rotated
// refresh token can never be redeemed twice.
//
// Access tokens are validated purely by signature and expiry. Refresh
// tokens are additionally checked against the stored per-user hash
// (HMAC-SHA256 when REEL_TOKEN_HMAC_KEY is set, otherwise SHA-256).
//
// Transport (cookies, headers) is out of scope here; see the api package.
package session
