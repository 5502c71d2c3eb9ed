/*
Package cache implements the Tag Cache, the Ingestion Pipeline's hot path
for turning a NodeId into the Tag metadata needed to enrich and validate
a Sample.

Modeled on a read-through cache with bulk invalidation rather than
per-key expiry, matching the acquisition worker's operator model:
metadata changes are rare and announced by an explicit reload, not
discovered by polling or change-data-capture.
*/
package cache
