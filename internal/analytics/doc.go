// Package analytics serves the artist analytics documents shown next to the
// station dashboard. Documents are loaded from a file or an HTTP URL, kept
// in memory read-only, and replaced as a whole on reload.
package analytics
