package pflow

// Version is the engine version, overridable at build time with
// -ldflags "-X github.com/lenML/pflow.Version=...".
var Version = "0.1.0"
