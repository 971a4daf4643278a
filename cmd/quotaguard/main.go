// Quotaguard throttles calls to metered remote services.
//
// Each configured service type gets a per-minute rate window, a retry policy
// for rate-limited and structurally invalid calls, and a monthly quota whose
// usage is flushed to durable daily records.
//
// Usage:
//
//	# Start the usage API and periodic flushing
//	quotaguard run --config quotaguard.yaml
//
//	# Show month-to-date usage for every service type
//	quotaguard usage
//
//	# Show daily history of one service type as CSV
//	quotaguard usage --service face --history --format csv
//
//	# Send one throttled request to a configured remote endpoint
//	quotaguard call face POST /detect --body '{"image_url": "https://..."}'
//
//	# Check a configuration file
//	quotaguard validate --config quotaguard.yaml
package main

func main() {
	Execute()
}
