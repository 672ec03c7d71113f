// Package bootstrap runs a service's components with a uniform lifecycle.
//
// An App validates its typed config, starts registered components in
// order, runs startup hooks and prints a summary. Run then blocks until
// SIGINT or SIGTERM, calling the reload hooks on SIGHUP; RunTask runs a
// finite task instead, which suits CLI commands. Shutdown stops components
// in reverse order within a graceful timeout.
package bootstrap
