package ctscrape

import "net/url"

// fixURL appends a trailing slash to the log's base URL path if one isn't
// already there. The Runner builds every ct/v1/... URL by appending to the
// base URL's string form, so without the slash the last path segment and
// "ct" would run together.
func fixURL(u *url.URL) *url.URL {
	out := *u
	if len(out.Path) == 0 || out.Path[len(out.Path)-1] != '/' {
		out.Path += "/"
	}
	return &out
}
