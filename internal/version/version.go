// ABOUTME: Build identity constants
// ABOUTME: Stamped into logs and the device label sent to servers
package version

// Version is the release version, overridable at build time via -ldflags.
var Version = "0.1.0"

// Product is the human-readable product name.
const Product = "PaperCup"
