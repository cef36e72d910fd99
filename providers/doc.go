// Package providers groups the ledger API implementations: erc1155 speaks the
// remote HTTP API and devkit holds in-memory fakes for tests and dry runs.
package providers
