// Package connection provides the retry pacing used while a client waits
// for a freshly spawned server.
//
// # Wait Strategy
//
// After starting a server process, the client polls for it with
// exponential backoff:
//
//  1. Initial delay: 50 milliseconds
//  2. Exponential increase: 100ms, 200ms, 400ms, 800ms
//  3. Maximum delay: 1 second
//  4. Continue at 1s until the server answers or the deadline passes
//
// # Jitter
//
// To keep several clients started together from polling in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
