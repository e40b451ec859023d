/*
Package session serializes access to runs.

The engine assumes a single advance per run at a time. Manager enforces that
with reference-counted in-process mutexes and, when a ports.DistributedLocker
is configured, a lock shared by every replica pointing at the same store.
*/
package session
