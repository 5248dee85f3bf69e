/*
Package identity implements the privilege boundary.

The binary installs setuid so unprivileged users can request privileged
volume operations; this package keeps that honest. Resolve reads the real
uid (the invoking user) and the effective uid (the elevated execution
identity) exactly once, and Authorize gates every mutating operation on
record ownership: only the owner or the administrative identity may
extend, expire, rename or destroy a workspace.

Authorize is a pure function and denial is a normal result
(types.DeniedError), so no operation can partially mutate state before
the check.
*/
package identity
