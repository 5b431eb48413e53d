package auth

import "strings"

// bearerPrefix is the expected credential scheme in the Authorization header.
const bearerPrefix = "Bearer "

// BearerToken extracts the raw token from an Authorization header value.
// A missing header, a different scheme, or an empty token all report false;
// the resolver treats them identically to "no credential supplied".
func BearerToken(authorization string) (string, bool) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return "", false
	}
	token := authorization[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}
