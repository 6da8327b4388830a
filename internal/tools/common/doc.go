// Package common provides shared helpers for tool packages, most notably
// the instrumented handler wrapper that records metrics and tracing spans
// around every tool invocation.
package common
