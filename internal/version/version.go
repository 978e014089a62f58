// ABOUTME: Version constants
// ABOUTME: Product identification reported to render services
package version

const (
	// Version is the software version
	Version = "0.1.0"

	// Product is the product name
	Product = "Slidecast Player"

	// Manufacturer is the product vendor
	Manufacturer = "Slidecast"
)
