package retroarch

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go-romm-sync/constants"
)

func udpAddr() string {
	return fmt.Sprintf("%s:%d", constants.RetroArchUDPHost, constants.RetroArchUDPPort)
}

// sendCommand fires a UDP command at RetroArch's local command port.
// SHOW_MSG is fire-and-forget (waitForResponse=false); GET_STATUS and other
// query commands wait up to timeout for a reply.
func sendCommand(command string, waitForResponse bool, timeout time.Duration) (string, error) {
	conn, err := net.Dial("udp", udpAddr())
	if err != nil {
		return "", fmt.Errorf("failed to reach retroarch udp port: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("failed to set udp deadline: %w", err)
	}

	if _, err := conn.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("failed to send udp command: %w", err)
	}

	if !waitForResponse {
		return "OK", nil
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("no response from retroarch: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

// SendNotification shows a transient on-screen message in RetroArch. It does
// not wait for any reply.
func SendNotification(message string) error {
	_, err := sendCommand("SHOW_MSG "+message, false, time.Second)
	return err
}

// GetStatus queries RetroArch's current play status over UDP, waiting up to
// 2 seconds for a reply.
func GetStatus() (string, error) {
	return sendCommand("GET_STATUS", true, 2*time.Second)
}
