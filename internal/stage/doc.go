// Package stage holds the readiness records the pipeline stages report.
package stage
