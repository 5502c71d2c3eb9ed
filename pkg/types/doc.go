/*
Package types defines the core data structures shared across the
acquisition worker.

It has no dependencies on any other internal package, by design: every
other package imports types, and nothing here imports them back.

# Core Types

Metadata (owned by the Metadata Repository, handed out by value):
  - Machine: a controller reachable over OPC UA
  - Tag: one addressable variable on a Machine

Wire and persistence shapes:
  - OpcQuality: three-valued quality derived from a 32-bit status word
  - Value: a tagged variant carrying exactly one scalar observation
  - Sample: one observation, from subscription callback through to storage
  - StoredBatch: an ordered list of Samples under one batch id, the unit
    the Spool writes to disk and the Batch Sink persists

# Thread Safety

All types here are plain data. Nothing synchronizes access; callers that
share a *Tag, *Machine, or Sample across goroutines are responsible for
not mutating it concurrently. In practice values flow one-directional
through the pipeline (subscription → ingestion → sink) and are not
shared after being handed off.
*/
package types
