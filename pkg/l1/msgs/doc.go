// Package msgs provides L1 protocol support and all message schemas.
//
// L1 messages travel between the vehicle controller (teensyd) and L2
// clients (CLI, monitor, brain). Each message is wrapped in a Typed
// envelope carrying the type ID and, for commands and replies, the
// sequence number pairing a reply with its command.
package msgs
