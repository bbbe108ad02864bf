// Package observability builds the zap logger shared by every component and
// the request logging middleware mounted on the router.
package observability
