// Debug utilities that can optionally be compiled into the server: a pprof
// endpoint and human-readable packet dumps for protocol debugging.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(logger *logrus.Logger, pprofPort int) {
	startPprofServer(logger, pprofPort)
}

// startPprofServer starts the default pprof HTTP server that can be accessed
// via localhost to get runtime information about the server.
// See https://golang.org/pkg/net/http/pprof/
func startPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

var dumpConfig = spew.ConfigState{Indent: "  ", DisableMethods: true}

// PrintPacket logs a decoded packet header and a hex/ascii payload dump.
// direction is "client" or "server" depending on who sent the packet.
func PrintPacket(logger *logrus.Logger, direction string, pkt *protocol.Packet) {
	logger.Debugf("[%s] %s (0x%04x) seq=%d len=%d\n%s",
		direction,
		protocol.PacketTypeName(pkt.Type),
		pkt.Type,
		pkt.Sequence,
		len(pkt.Payload),
		dumpConfig.Sdump(pkt.Payload),
	)
}

// PrintPayload logs a decoded payload struct for a packet type.
func PrintPayload(logger *logrus.Logger, packetType uint16, payload interface{}) {
	logger.Debugf("%s payload: %s", protocol.PacketTypeName(packetType), dumpConfig.Sdump(payload))
}
