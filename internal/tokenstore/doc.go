// Package tokenstore persists one session TokenBundle together with its expiry
// marker.
//
// Two media are supported behind the Store interface:
//   - File: a directory holding auth_tokens.json and auth_expiry.txt, written
//     atomically with owner-only permissions
//   - Key-value: two string records in a Backend (OS keyring, Redis, or memory)
//
// The medium is picked once at startup with Select; callers only see Store.
// Expiry is lazy: Load removes both records once the marker has passed.
// Corrupt or half-written state is reported as absence, never as an error.
package tokenstore
