// Package opposed compares an attacker's and a defender's already evaluated
// Closed tests and tracks the two-party handshake that collects them.
//
// Both scoring modes favour the defender on ties.
package opposed
