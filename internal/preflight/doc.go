// Package preflight provides readiness checks for filesystem paths, model
// files, external binaries and the remote vision API that autotag depends on.
//
// These checks run in two contexts:
//   - `autotag run` calls RunAll before starting the worker and refuses to
//     start when a required check fails.
//   - `autotag deps` prints every check alongside stage health.
//
// The vision API check is gated by its config toggle.
package preflight
