// Package testsupport provides test configuration and SQLite record fixtures.
package testsupport
