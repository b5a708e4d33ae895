// Package identity implements persistence for the device identity.
//
// The FileRepository stores and loads the identity as JSON on disk and
// exposes a Repository interface that the beacon service depends on. The
// identity is generated once on first run; losing every way to establish
// one is the only fatal condition in the system.
package identity
