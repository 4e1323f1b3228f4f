// Package preflight provides readiness checks for the filesystem paths and
// the capture device holocap depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and the workflow manager runs
//     RunStorageChecks before each sync, so a full disk halts the lane
//     instead of leaving half-written outputs.
//   - The CLI "holocap status" command renders individual results
//     (CheckDirectoryAccess, ProbeLink) as service health.
package preflight
