// Package version reports the build version of the mediafs binary.
package version
