/*
Package spool implements the on-disk store-and-forward queue the Batch
Sink falls back to while the relational store is unavailable.

Each batch is one JSON file, written with a temp-file-plus-rename so a
reader never observes a partial write. Filenames encode their creation
time (batch_YYYYMMDD_HHMMSS_<32-hex>.json) so a plain lexicographic sort
of the directory listing recovers chronological order without reading
file metadata.

The spool does not support concurrent access from multiple processes;
all operations assume a single Spool value owns Dir for the lifetime of
the worker process.
*/
package spool
