// Package libvirt provides a client wrapper for the libvirt daemon, used by
// the libvirt backend variant of the platform capability.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management (connect, disconnect, ping)
//   - Daemon version queries
//   - Host network enumeration with bridge names parsed from network XML
//
// Connection management:
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Ping(); err != nil {
//	    return err
//	}
//
// Consumer-side interfaces:
//
// This package does not define interfaces. Consumers (internal/platform)
// define their own client interfaces specifying only the operations they
// need; *Client satisfies them implicitly, enabling clean dependency
// injection in tests.
package libvirt
