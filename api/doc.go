// Package api defines the wire types shared by the relay HTTP server and its
// clients. Binary fields (payloads, attributes, signatures, identities) travel
// hex-encoded; the admin signature header constant lives here so both sides
// agree on it.
package api
