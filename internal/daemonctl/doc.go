// Package daemonctl launches, stops and inspects the holocapd process on
// behalf of the CLI.
package daemonctl
