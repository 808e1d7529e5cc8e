// Package demotools provides deterministic in-memory capabilities used by the
// HTTP demo and CLI: arithmetic, weather, data analysis and the mock support
// back-office (sentiment, knowledge base, customer records, service status,
// response drafting). None of them perform network I/O.
package demotools
