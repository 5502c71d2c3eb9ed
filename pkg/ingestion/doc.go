/*
Package ingestion implements the Ingestion Pipeline: resolve, enrich,
validate, forward. It sits between the Subscription Manager (or a test
harness producing raw samples) and the Batch Sink, and is the only
place in the system where an unknown tag or an invalid reading is
observed and discarded rather than persisted.

Every failure mode here is a drop, not a propagated error: a single bad
sample must never tear down the subscription that produced it.
*/
package ingestion
