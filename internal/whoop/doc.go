// Package whoop implements a client for the WHOOP developer API (v2).
//
// The client covers physiological cycles, recovery, sleep, workouts, and
// user profile endpoints. Authentication is delegated to a TokenSource so
// the same client works with a static bearer token or a vendor token file
// that refreshes itself against WHOOP's OAuth token endpoint.
package whoop
