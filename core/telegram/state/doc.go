// Package state provides an FSM/session manager for Telegram conversations.
// Sessions carry a typed draft payload and a last-touched timestamp so idle
// conversations can be reaped. The backing store is pluggable behind Manager;
// the in-memory implementation is the default.
package state
