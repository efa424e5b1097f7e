// Package ingest delivers captured segments to the ingestion service.
//
// Each segment is encoded to a self-contained audio file and sent as a
// single multipart/form-data POST. Delivery is attempted exactly once; any
// 2xx response counts as success.
package ingest
