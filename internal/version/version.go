// ABOUTME: Version information for radiowatch
// ABOUTME: Used in the HTTP User-Agent, mDNS TXT records and the health endpoint
package version

import "fmt"

const (
	// Version is the release version
	Version = "0.3.0"
	// Product is the product name
	Product = "radiowatch"
	// Manufacturer identifies who builds it
	Manufacturer = "harperreed"
)

// UserAgent returns the User-Agent sent to stream and ingest servers
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Product, Version)
}
