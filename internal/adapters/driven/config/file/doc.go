// Package file provides the TOML configuration store read at startup.
// The file lives at ~/.sercha-rec/config.toml unless a path is given.
package file
