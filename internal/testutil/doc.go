// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversations, messages and capability
// calls. They are not intended for production usage.
package testutil
