// Package memory implements the domain stores on process-local maps. The
// server always runs on a durable backend; these stores exist for the test
// suite and for embedding the managers without one. Nothing here survives a
// restart.
package memory
