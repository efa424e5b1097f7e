// ABOUTME: Audio encoder package for captured sample segments
// ABOUTME: Provides the Encoder interface with Ogg/Opus and WAV implementations
// Package encode turns captured PCM into an uploadable file.
//
// Supports: Ogg/Opus (compact, the default) and 16-bit WAV (lossless)
//
// Example:
//
//	enc, err := encode.New(encode.CodecOpus, 64000)
//	data, err := enc.Encode(buf)
//	req.Header.Set("Content-Type", enc.ContentType())
package encode
