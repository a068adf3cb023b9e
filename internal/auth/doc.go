// Package auth guards the hub's event stream with HS256 bearer tokens.
//
// Subscribers send "Authorization: Bearer <token>"; the token must carry a
// subject and the "events" scope. Sources registering with the hub are never
// authenticated.
package auth
