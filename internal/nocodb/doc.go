// Package nocodb is a small client for the NocoDB v1 data API.
//
// Rows are addressed by composite keys rendered as where clauses, e.g.
// (REGN_NO,eq,AU21UG-006)~and(YEAR_FLAG,eq,1). Failures are returned as
// *StoreError, classified transient (network, timeouts, 408, 429, 5xx) or
// permanent before any retry decision is made by the caller.
package nocodb
