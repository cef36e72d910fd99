// Package core holds the mintflow workflow: the token lifecycle, the polling
// engine, the operation ledger, the stage progress controller and the stage
// drivers that tie them to the remote ledger API. Adapters depend on this
// package; core never imports transport or storage adapters.
package core
