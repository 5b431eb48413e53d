package auth

import "strings"

// publicRoutePrefix marks endpoints reachable without a resolved identity.
const publicRoutePrefix = "/api/p/"

// IsPublic classifies a request path. The match is anchored at the start of
// the path; a path merely containing the prefix elsewhere is not public.
func IsPublic(path string) bool {
	return strings.HasPrefix(path, publicRoutePrefix)
}
