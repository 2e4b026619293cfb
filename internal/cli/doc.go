// Package cli parses the command-line surface into an immutable app.Config,
// merging flag values with the optional HCL run-config file and NABAINFER_*
// environment defaults.
package cli
