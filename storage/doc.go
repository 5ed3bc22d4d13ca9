// Package storage defines the destination interface for processed images.
//
// Consumers write each encoded result through a Store under a key of the
// form "cons-<consumer>-<name><ext>". Two backends are provided:
//
//   - filestore: files under a local directory, created on first write
//   - objectstore: objects in a NATS JetStream ObjectStore bucket
//
// Errors follow the errors package classification. A missing key matches
// errors.ErrKeyNotFound; a backend that cannot be reached is Transient so the
// consumer's retry policy applies; a full disk is Fatal.
package storage
