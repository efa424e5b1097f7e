// Package session owns the configured stations for one monitoring run.
//
// The Registry holds a playback handle and an AudioState per station and
// drives each status through an explicit transition table. The Controller
// issues intent-level commands (play, focus, mute) against it. Session
// wires the Registry's transitions into the sampling pipeline.
package session
