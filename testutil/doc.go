// Package testutil provides shared helpers for pixelflow tests.
//
// MemoryStore is an in-memory storage.Store with failure injection, used by
// consumer and controller tests that must not touch the filesystem.
// FakeDecoder stands in for the image codec so producers can be driven with
// synthetic payloads. WritePNGs lays down small real PNG files for end-to-end
// runs through the directory source and codec.
//
// NewNATS and StartNATS run a JetStream-enabled NATS server in a container via
// testcontainers-go. They are only used by tests built with the integration tag
// and skip unless INTEGRATION_TESTS is set.
package testutil
