package agentwright

// Version is the release of the library and the CLI.
// Overridden at build time with -ldflags "-X github.com/aretw0/agentwright.Version=...".
var Version = "0.1.0-dev"
