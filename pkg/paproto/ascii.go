package paproto

import (
	"fmt"
	"strconv"
)

// formatLogLine renders a packet as a single human-readable ASCII log line:
//
//	<ntp time>15.4f : <packet type>15s : CRC OK|CRC BAD : <quoted payload>
func formatLogLine(ntpTime float64, packetType string, crc string, payload []byte) string {
	return fmt.Sprintf("%15.4f : %15s : %7s : %s", ntpTime, packetType, crc, strconv.Quote(string(payload)))
}
