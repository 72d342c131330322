// Package relay fans chat lines out to every other registered session.
//
// Broadcast never blocks on a recipient: lines are queued into each
// recipient's bounded outbox and sent by the recipient's own goroutine.
package relay
