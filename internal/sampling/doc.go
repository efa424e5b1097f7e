// Package sampling periodically captures short segments from every playing
// station and hands them to an uploader.
//
// Captures read the pre-gain tap of a station's handle, so focus, mute and
// volume never change what is recorded. Capture length is counted in
// decoded frames. Per station at most one capture runs at a time; a tick
// that arrives during a capture is remembered and served as soon as the
// capture completes.
package sampling
