// Package support wires stages into the two customer support workflows:
// a parallel fan-out over sentiment, knowledge base, customer context and
// service status followed by a response synthesis, and a six-step sequential
// pipeline where each step consumes the previous step's findings.
package support
