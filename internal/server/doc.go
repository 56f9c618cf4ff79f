// Package server hosts the Fiber HTTP service and its middleware chain:
// panic recovery, X-Request-ID generation, access logging and JSON error
// rendering. Route registration lives in the routes subpackage so the app
// constructors stay free of release-specific dependencies beyond the
// configuration error rendered by NewMisconfiguredApp.
package server
