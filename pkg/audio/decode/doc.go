// ABOUTME: Audio decoder package for live radio streams
// ABOUTME: Provides the Stream interface and MP3, FLAC, Ogg and WAV implementations
// Package decode turns an encoded byte stream into PCM buffers.
//
// Supports: MP3, FLAC, Ogg (Vorbis and Opus, including chained streams), WAV
//
// All streams output int32 samples in 24-bit range for consistent
// processing downstream. A Stream owns the reader it was opened on and
// closes it on Close.
//
// Example:
//
//	codec, err := decode.CodecFor(resp.Header.Get("Content-Type"), url)
//	stream, err := decode.Open(resp.Body, codec)
//	buf, err := stream.Read()
package decode
