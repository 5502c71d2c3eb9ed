/*
Package storage implements the Metadata Repository and the Batch Sink's
relational persistence surface against database/sql.

SQLStore is the concrete, driver-agnostic implementation; the development
and test driver is modernc.org/sqlite, chosen because it is pure Go. Any
database/sql driver satisfies the same Store interface, so a production
deployment swaps in a server-grade driver without touching callers.

# Bulk insert fallback

InsertBatch prefers a server-side bulk routine over per-row inserts. No
database/sql API exposes a portable table-valued parameter, so the bulk
routine is represented as a named SQL function probed before the insert;
its absence surfaces as a driver error distinguishable from an ordinary
connectivity failure, and is remembered for the process lifetime — once
seen, every later InsertBatch call goes straight to the per-row path.

# Schema

	Machines(Id, Name, Description, AutomateType, OpcEndpoint, IsActive, CreatedAt, UpdatedAt)
	Tags(Id, MachineId, Name, NodeId, DataType, Unit, MinValue, MaxValue, AllowedValues, IsActive)
	TagValues(Id, MachineId, TagId, TagName, NodeId, Value, Quality, SourceTimestamp, ServerTimestamp, ReceivedTimestamp)

Tags.NodeId and Tags.(MachineId,Name) are unique. TagValues is indexed on
ReceivedTimestamp. AllowedValues is stored as a single TEXT column with
entries joined by the ASCII unit separator (0x1F) rather than a comma, so
permissible values may themselves contain commas.
*/
package storage
