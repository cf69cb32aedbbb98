package weft

// Version is the library version, stamped by the release workflow.
var Version = "0.1.0"
