package node

import (
	"crypto/sha256"
	"net"

	"github.com/denisbrodbeck/machineid"

	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// DeriveClientID picks the node's 6-byte identity: the MAC address of the
// first usable uplink interface, or a stable machine-id digest when the
// host exposes no suitable interface (containers, odd virtual NICs). The
// derived fallback is marked locally administered so it can never collide
// with a real burned-in MAC.
func DeriveClientID() (wire.ClientID, error) {
	if id, ok := uplinkMAC(); ok {
		return id, nil
	}
	mid, err := machineid.ID()
	if err != nil {
		return wire.ClientID{}, err
	}
	sum := sha256.Sum256([]byte("vibesensor:" + mid))
	var id wire.ClientID
	copy(id[:], sum[:])
	id[0] = id[0]&^0x01 | 0x02
	return id, nil
}

func uplinkMAC() (wire.ClientID, bool) {
	var id wire.ClientID
	ifaces, err := net.Interfaces()
	if err != nil {
		return id, false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		if len(ifc.HardwareAddr) != wire.ClientIDBytes {
			continue
		}
		copy(id[:], ifc.HardwareAddr)
		return id, true
	}
	return id, false
}
