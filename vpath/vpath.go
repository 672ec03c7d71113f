// Package vpath converts between the three path forms used by mediafs:
//
//   - virtual path, as seen by the CMS: /media/1234/img.jpg
//   - storage key, as understood by the remote asset service: 1234/img.jpg
//   - public URL, as served to browsers: /media/1234/img.jpg
//
// All functions are pure and safe for concurrent use.
package vpath

import "strings"

// NormalizeSeparators replaces every backslash with a forward slash.
func NormalizeSeparators(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// NormalizeRoot turns a configured virtual root into its canonical form:
// a leading slash and no trailing slash. "~/media/" and "media" both become
// "/media". A root of "/" or "" normalises to "".
func NormalizeRoot(root string) string {
	r := NormalizeSeparators(strings.TrimSpace(root))
	r = strings.TrimPrefix(r, "~")
	r = strings.Trim(r, "/")
	if r == "" {
		return ""
	}
	return "/" + r
}

// HasRoot reports whether p starts with root on a slash boundary.
// The comparison is case-insensitive; "/mediafiles" does not match "/media".
func HasRoot(root, p string) bool {
	if root == "" {
		return false
	}
	if len(p) < len(root) || !strings.EqualFold(p[:len(root)], root) {
		return false
	}
	return len(p) == len(root) || p[len(root)] == '/'
}

// ToStorageKey strips the virtual root from p and trims slashes. Paths that
// do not start with the root are treated as already relative. Applying it
// twice gives the same result as applying it once.
func ToStorageKey(root, p string) string {
	p = NormalizeSeparators(p)
	if HasRoot(root, p) {
		p = p[len(root):]
	}
	return strings.Trim(p, "/")
}

// ToFullPath returns p under the virtual root, trimmed of slashes.
func ToFullPath(root, p string) string {
	p = NormalizeSeparators(p)
	if HasRoot(root, p) {
		return strings.Trim(p, "/")
	}
	return strings.Trim(root+"/"+strings.Trim(p, "/"), "/")
}

// ToPublicURL joins the root and p with exactly one slash.
func ToPublicURL(root, p string) string {
	return root + "/" + strings.Trim(NormalizeSeparators(p), "/")
}

// LeafName returns the last path segment. A trailing slash is ignored, so
// "/a/b/" yields "b". The root ("", "/") yields "".
func LeafName(p string) string {
	p = strings.TrimSuffix(NormalizeSeparators(p), "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// EnsureLeadingSlash prefixes p with "/" unless it already has one.
func EnsureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// Parent returns the folder part of a storage key, "" for top-level keys.
func Parent(key string) string {
	key = strings.Trim(key, "/")
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return ""
}
