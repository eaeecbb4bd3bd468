package models

// Client describes the node a chain adapter connects to.
type Client struct {
	Addr       string // ws endpoint, e.g. ws://localhost:9944
	SS58Prefix uint8
}
