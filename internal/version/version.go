package version

// Version is the tool version, overridable at build time via
// -ldflags "-X git.home.luguber.info/inful/pydocgen/internal/version.Version=...".
var Version = "0.2.0"
