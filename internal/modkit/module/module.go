// Package module defines what a service module exposes to the command layer
package module

// Module is a named bundle of ports. It lives apart from modkit so PortsOf
// can be used without pulling in Deps and its backends
type Module interface {
	Name() string
	Ports() PortSet
}
