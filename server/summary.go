package server

import (
	"cmp"
	"strings"
)

// System route paths registered by RegisterDefaultEndpoints.
var systemPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// compareRoutes orders API routes before system routes, then by path and
// method.
func compareRoutes(am, ap, bm, bp string) int {
	if as, bs := systemPaths[ap], systemPaths[bp]; as != bs {
		if as {
			return 1
		}
		return -1
	}
	if c := strings.Compare(ap, bp); c != 0 {
		return c
	}
	return cmp.Compare(methodOrder(am), methodOrder(bm))
}

// formatHandlerName extracts a clean handler name from Gin's full handler path.
// Gin stores handlers like:
//
//	"github.com/kbukum/mediafs/server.(*files).list-fm"
//
// We extract: "files.list"
func formatHandlerName(fullPath string) string {
	name := strings.TrimSuffix(fullPath, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	// Closures such as "endpoint.Health.func1" become "health".
	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				return strings.ToLower(parts[i])
			}
		}
	}

	// Drop the package prefix: "server.files.list" becomes "files.list".
	if pkg, rest, ok := strings.Cut(name, "."); ok && rest != "" && strings.ToLower(pkg) == pkg && strings.Contains(rest, ".") {
		name = rest
	}
	return name
}

// methodOrder returns a sort key for HTTP methods (GET first, DELETE last).
func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "HEAD":
		return 1
	case "POST":
		return 2
	case "PUT":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
