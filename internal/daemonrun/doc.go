// Package daemonrun assembles and runs the holocapd process: log files and
// the live log hub, the recording catalogue, the sync workflow, the daemon
// surfaces, and the IPC socket.
package daemonrun
