// Package password implements Argon2id password hashing for Reel.
//
// Hashes are encoded as PHC-style strings and treated as untrusted input on
// Verify: the encoded parameters are re-validated and bounded so an
// attacker-supplied hash string cannot drive pathological resource usage.
// Cost parameters and the password policy are configurable via environment
// variables with conservative defaults.
package password
