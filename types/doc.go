// Package types contains the shared record types and the error taxonomy used
// across the retrieval pipeline. Every stage exchanges types.Result values so
// each stage has a checkable contract instead of ad hoc maps.
package types
