// Package errors defines the structured error type shared by every mediafs
// package. Absence of a file or folder is modelled as a value by the file
// system layer; AppError covers everything that must stop a call.
package errors
