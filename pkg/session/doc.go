/*
Package session orchestrates persistence of generation sessions.

It serializes concurrent access to a session's snapshot with ref-counted
in-process locks, optionally combined with a distributed locker when
multiple replicas share one snapshot store.
*/
package session
