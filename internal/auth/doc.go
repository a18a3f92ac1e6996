// Package auth provides operator tokens for the light node HTTP API.
//
// Tokens are HS256 JWTs signed with the node's api.auth.jwt_secret. They
// are minted offline with "lightnode token" and validated by signature
// only, so the node keeps no token state. Three roles map to a static
// permission table:
//
//	viewer    status, journal and the live feed
//	operator  viewer plus lamp commands, reconnect and session reset
//	owner     operator plus provisioning and factory reset
package auth
