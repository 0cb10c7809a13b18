// Package auth provides credential verification, lockout enforcement, and
// single-active-session arbitration on top of Bun backed account storage.
//
// Login flow:
//   - Coordinator drives the whole flow: it normalizes the login id, asks the
//     CredentialVerifier for an authenticated Principal, records failures and
//     lockouts transactionally, and hands the session over to SessionArbiter.
//   - LockoutPolicy counts consecutive failures and locks the account once the
//     threshold is reached. Expired lockouts are cleared automatically on the
//     next attempt, before credentials are checked.
//   - First time logins succeed with OutcomeNeedChangePassword and no login
//     timestamp, so callers can force a password change before anything else.
//
// Sessions:
//   - SessionArbiter enforces one active session per account. A second login
//     is rejected with ALREADY_LOGIN unless the caller forces it, in which
//     case every other registered session is expired first.
//   - The session id travels as a signed cookie (SessionTokenService plus
//     CookieTransport) while SessionRegistry keeps the server-side state that
//     decides whether a cookie still maps to a live session.
//
// Authorization:
//   - PermissionGuard evaluates required authority strings against the
//     principal attached to the request context, with AND and OR operators.
//     RequirePermission exposes the same check as router middleware.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the coordinator,
//     the arbiter, and the state machine to describe login, lockout, takeover,
//     and lifecycle events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking authentication.
package auth
