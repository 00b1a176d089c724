// Package recycle implements the client side of the LIMS recycle bin.
//
// Soft-deleted records are kept as Entry values in two places: a remote
// store reached over HTTP, which is authoritative whenever it answers, and a
// local store private to one client instance, which always answers. The
// Engine decides per operation which store answers and mirrors changes into
// the other one:
//
//	Refresh  remote List          -> fallback local List
//	Add      remote Create        -> fallback local Append
//	Remove   remote DeleteByUID   -> fallback local Remove
//	Clear    remote delete-each   -> fallback local Clear
//
// Entries added while the remote is down carry a "local-" uid; removals made
// while it is down are remembered and hide the remote copy. Sync pushes both
// once the remote answers again.
//
// Remote failures never reach the caller as errors. Each operation returns
// an Outcome describing which store answered and what failed along the way.
//
// Consumers (UI views) subscribe to the event bus and re-query the engine on
// every recycle.updated signal; the signal carries no data.
package recycle
