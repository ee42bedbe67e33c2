// Package log is a small wrapper around the standard library logger that
// gives every component its own named logger.
//
// Each line carries the level and a `[name>]` prefix:
//
//	2026/10/16 10:00:00.000000 INFO [storage>] opened catalog.db
//
// Debug lines are dropped unless debug is enabled globally
// (SetGlobalDebug, the --debug flag) or for the service
// (EnableDebugFor, the debug_services config entry).
//
// The package name collides with the standard library; alias one of them
// when both are needed:
//
//	import (
//		stdlog "log"
//		"github.com/rubiojr/shelf/pkg/log"
//	)
//
// Usage:
//
//	l := log.ForService("session")
//	l.Infof("navigated to %s", nav)
//	l.Debugf("discarding stale response gen=%d", gen)
package log
