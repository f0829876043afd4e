// Package integration provides integration tests for the ambari-sync engine.
// These tests run the complete application against a fake Ambari server and
// drive it through the control API.
package integration
