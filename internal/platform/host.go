package platform

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/system/shutdown"
)

// PinctrlRelay drives relay channels through the pinctrl utility. Channels
// map to GPIO pin numbers; relays are wired active-high.
type PinctrlRelay struct {
	pins map[int]int
}

func NewPinctrlRelay(pins map[int]int) *PinctrlRelay {
	return &PinctrlRelay{pins: pins}
}

func (r *PinctrlRelay) Energize(channel int) error {
	return r.drive(channel, "dh")
}

func (r *PinctrlRelay) DeEnergize(channel int) error {
	return r.drive(channel, "dl")
}

func (r *PinctrlRelay) drive(channel int, level string) error {
	pin, ok := r.pins[channel]
	if !ok {
		return fmt.Errorf("no pin mapped for relay channel %d", channel)
	}
	cmd := exec.Command("pinctrl", "set", strconv.Itoa(pin), "op", "pn", level)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pinctrl set failed for pin %d: %s (output: %s)", pin, err, string(out))
	}
	return nil
}

// SystemTime reads the host clock and resyncs it via ntpdate against the
// configured pool host.
type SystemTime struct {
	NTPHost string
}

func NewSystemTime(ntpHost string) *SystemTime {
	return &SystemTime{NTPHost: ntpHost}
}

func (t *SystemTime) Now() time.Time {
	return time.Now().UTC()
}

func (t *SystemTime) Sync() error {
	cmd := exec.Command("ntpdate", "-u", t.NTPHost)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ntpdate failed: %s (output: %s)", err, string(out))
	}
	return nil
}

// NmcliNetwork manages WiFi through NetworkManager's nmcli.
type NmcliNetwork struct {
	iface string
}

func NewNmcliNetwork(iface string) *NmcliNetwork {
	return &NmcliNetwork{iface: iface}
}

func (n *NmcliNetwork) Connect(ssid, password string) error {
	cmd := exec.Command("nmcli", "dev", "wifi", "connect", ssid, "password", password, "ifname", n.iface)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli connect failed: %s (output: %s)", err, string(out))
	}
	return nil
}

func (n *NmcliNetwork) Connected() bool {
	out, err := exec.Command("nmcli", "-t", "-f", "GENERAL.STATE", "dev", "show", n.iface).Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "connected")
}

func (n *NmcliNetwork) SignalStrength() int {
	out, err := exec.Command("nmcli", "-t", "-f", "IN-USE,SIGNAL", "dev", "wifi").Output()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "*:") {
			continue
		}
		pct, err := strconv.Atoi(strings.TrimPrefix(line, "*:"))
		if err != nil {
			return 0
		}
		// nmcli reports percent; approximate dBm for the status screen
		return pct/2 - 100
	}
	return 0
}

func (n *NmcliNetwork) IPAddress() string {
	out, err := exec.Command("nmcli", "-t", "-f", "IP4.ADDRESS", "dev", "show", n.iface).Output()
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(out))
	if i := strings.Index(line, ":"); i >= 0 {
		line = line[i+1:]
	}
	if i := strings.Index(line, "/"); i >= 0 {
		line = line[:i]
	}
	return line
}

func (n *NmcliNetwork) StartAccessPoint(ssid string) (string, error) {
	cmd := exec.Command("nmcli", "dev", "wifi", "hotspot", "ifname", n.iface, "ssid", ssid)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("nmcli hotspot failed: %s (output: %s)", err, string(out))
	}
	addr := n.IPAddress()
	if addr == "" {
		addr = "10.42.0.1" // NetworkManager's default shared-mode address
	}
	return addr, nil
}

func (n *NmcliNetwork) StopAccessPoint() {
	if out, err := exec.Command("nmcli", "con", "down", "Hotspot").CombinedOutput(); err != nil {
		log.Warn().Err(err).Str("output", string(out)).Msg("Failed to stop access point")
	}
}

func (n *NmcliNetwork) Scan() []string {
	out, err := exec.Command("nmcli", "-t", "-f", "SSID", "dev", "wifi", "list").Output()
	if err != nil {
		log.Warn().Err(err).Msg("WiFi scan failed")
		return nil
	}
	seen := map[string]bool{}
	var ssids []string
	for _, line := range strings.Split(string(out), "\n") {
		ssid := strings.TrimSpace(line)
		if ssid == "" || seen[ssid] {
			continue
		}
		seen[ssid] = true
		ssids = append(ssids, ssid)
	}
	return ssids
}

// SoftWatchdog enforces the tick-loop liveness bound in software. A feed
// must arrive within the timeout or the process is killed, which on a
// supervised device amounts to the reset a hardware watchdog would force.
type SoftWatchdog struct {
	feeds chan struct{}
}

func StartWatchdog(timeout time.Duration) *SoftWatchdog {
	w := &SoftWatchdog{feeds: make(chan struct{}, 1)}
	go func() {
		for {
			select {
			case <-w.feeds:
			case <-time.After(timeout):
				shutdown.Fatal(fmt.Errorf("no watchdog feed within %s", timeout), "Watchdog expired, forcing reset")
				return
			}
		}
	}()
	return w
}

func (w *SoftWatchdog) Feed() {
	select {
	case w.feeds <- struct{}{}:
	default:
	}
}
