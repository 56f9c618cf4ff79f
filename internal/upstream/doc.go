// Package upstream wraps every outbound call release-hub makes to the
// release host: a shared, tuned http.Client, a Fetcher that performs a single
// GET and hands back status + body, a Retrier that bounds attempts and
// throttles with a token bucket, and an AssetDownloader that resolves
// private release assets through the GitHub API.
package upstream
