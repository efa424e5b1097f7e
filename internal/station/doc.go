// Package station defines the configured radio stations and the state
// observed for each of them: status, volume, focus and faults.
package station
