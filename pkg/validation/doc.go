/*
Package validation implements the acquisition worker's composite
validation rule as a set of pure functions: no I/O, no shared state,
safe to call from any goroutine including a subscription transport
callback.
*/
package validation
