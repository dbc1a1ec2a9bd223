// Package subscription implements the notification registry of one
// database.
//
// A subscription is a client's interest in a subtree of the database. The
// registry assigns each one an ascending id, journals every change, and
// fans out change notifications to the subscribers whose location is a
// path prefix of the changed key.
//
// # Delivery
//
// Notify takes a snapshot of the matching subscriptions and delivers
// outside the registry lock, in ascending id order. A subscriber whose
// delivery faults is not retried; after the fan-out it is removed and one
// REMOVE line is journaled for it.
//
// # Ids after a restart
//
// Ids are unique for the lifetime of a registry. After a restart the
// recovery code moves journaled subscriptions to fresh ids with Readd;
// ReserveIDs keeps those fresh ids clear of the old ones.
package subscription
