// Package api exposes the monitoring session over HTTP.
//
// The gin router serves station state and playback commands as JSON, upload
// history, cached station logos and the analytics documents. A websocket
// feed at /ws pushes a full snapshot on connect and after every change.
package api
