// Package commands defines the distctl CLI.
//
// Commands
//
//   - token issue     Mint an HS256 bearer token from the profile secret
//   - token verify    Check a token's signature and expiry
//   - token decode    Print a token's header and claims without verifying
//   - subscribe       Watch a GraphQL subscription over WebSocket
//   - login           Exchange credentials for a token
//   - orders          List, show, create and change the status of orders
//   - shipments       Create shipments, move them along, print labels
//   - movements       Record and list returns, imports and transfers
//
// Settings come from a TOML profile (default ~/.bbdist/profile.toml) and
// can be overridden per invocation with flags.
package commands
