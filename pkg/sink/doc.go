/*
Package sink implements the Batch Sink, the boundary between the
ingestion pipeline and the relational store.

The Sink buffers samples in memory, flushing on whichever trigger fires
first: the buffer crossing AutoFlushThreshold, or the Worker Loop's
periodic tick. On a storage outage it degrades to the on-disk spool
(package spool) rather than blocking or dropping samples, and recovers
by probing the store on an exponential backoff before draining the
spool back in.

The Sink is a single long-lived value per process; it is not safe to
construct more than one against the same spool directory.
*/
package sink
