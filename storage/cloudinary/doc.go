// Package cloudinary implements storage.Client over the Cloudinary Admin
// and Upload REST APIs.
//
// Storage keys are used verbatim as public IDs, so folders follow the
// fixed-folder model: the folder of "1234/img.jpg" is "1234". Admin calls
// use HTTP basic auth with the API key and secret; uploads are signed.
// Importing the package registers the "cloudinary" provider.
package cloudinary
