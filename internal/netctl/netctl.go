// Package netctl brings the network-facing services of the device up and
// down as a group: the HTTP configuration server, the mDNS announcement
// and the MQTT link. The control loop tears them down on the first
// accepted coin and requests them back later.
package netctl

// Controller owns the network services. Requests are asynchronous so the
// control loop never waits on sockets.
type Controller interface {
	// RequestUp asks for the services to be brought up.
	RequestUp()

	// RequestDown asks for the services to be torn down.
	RequestDown()

	// Active reports whether the services are currently up.
	Active() bool

	// Close tears the services down and stops the controller.
	Close() error
}

// Link is the MQTT side of the network services.
type Link interface {
	Connect() error
	Disconnect()
}
