// Package filesystem maps CMS file-system operations onto a remote asset
// service.
//
// Paths may be given as virtual paths ("/media/1234/img.jpg") or relative
// to the virtual root ("1234/img.jpg"); both resolve to the storage key
// "1234/img.jpg". Remote failures surface as SERVICE_ERROR app errors
// carrying the operation and storage key. A blank path is rejected with
// INVALID_ARGUMENT before any remote call.
package filesystem
