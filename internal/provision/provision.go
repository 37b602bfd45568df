// Package provision runs the access-point credential capture mode. It is
// deliberately blocking: normal operation stops until credentials are saved
// or the device is power-cycled, with the watchdog fed throughout.
package provision

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/display"
	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/store"
	"github.com/eddwatts/BellTimer/system/shutdown"
)

// Run brings up the setup access point and serves the credential form until
// a valid submission arrives, then persists the credentials and restarts the
// controller. It only returns on error. listenAddr is the control port; the
// caller must have released it first.
func Run(netw platform.Network, str *store.Store, disp *display.Display, wdt platform.Watchdog, listenAddr, apName string) error {
	log.Info().Str("ap", apName).Msg("Entering WiFi setup mode")

	addr, err := netw.StartAccessPoint(apName)
	if err != nil {
		return fmt.Errorf("failed to start setup access point: %w", err)
	}
	defer netw.StopAccessPoint()

	disp.ShowSetup(apName, addr)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind setup port: %w", err)
	}
	defer ln.Close()

	tcp := ln.(*net.TCPListener)
	for {
		// keep feeding while blocked waiting for the user
		wdt.Feed()
		tcp.SetDeadline(time.Now().Add(time.Second))

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("setup accept failed: %w", err)
		}

		creds, saved := handleSetupRequest(conn, netw, str)
		if saved {
			log.Info().Str("ssid", creds.SSID).Msg("Credentials saved, restarting")
			shutdown.Restart("restarting to join configured network")
		}
	}
}

// handleSetupRequest serves one setup-mode request. Reports whether a
// credential submission was accepted and persisted.
func handleSetupRequest(conn net.Conn, netw platform.Network, str *store.Store) (model.Credentials, bool) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read setup request")
		return model.Credentials{}, false
	}

	if req.Method == http.MethodPost && req.URL.Path == "/save" {
		if err := req.ParseForm(); err != nil {
			respond(conn, "<h1>Bad request</h1>")
			return model.Credentials{}, false
		}
		creds := model.Credentials{
			SSID:     req.PostFormValue("ssid"),
			Password: req.PostFormValue("password"),
		}
		if creds.SSID == "" {
			respond(conn, "<h1>SSID is required</h1><p><a href='/'>Back</a></p>")
			return model.Credentials{}, false
		}
		if err := str.SaveCredentials(creds); err != nil {
			log.Error().Err(err).Msg("Failed to save credentials")
			respond(conn, "<h1>Failed to save credentials</h1>")
			return model.Credentials{}, false
		}
		respond(conn, "<h1>Credentials Saved!</h1><p>The device will now reboot and connect to the new network.</p>")
		return creds, true
	}

	options := ""
	for _, ssid := range netw.Scan() {
		options += fmt.Sprintf("<option value=\"%s\">%s</option>", ssid, ssid)
	}
	respond(conn, fmt.Sprintf(`<h1>Bell Controller WiFi Setup</h1>
<form action="/save" method="post">
<label for="ssid">Select WiFi Network:</label><br>
<select id="ssid" name="ssid">%s</select><br><br>
<label for="password">Password:</label><br>
<input type="password" id="password" name="password"><br><br>
<input type="submit" value="Save and Reboot">
</form>`, options))
	return model.Credentials{}, false
}

func respond(conn net.Conn, body string) {
	fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nConnection: close\r\n\r\n"+
		"<!DOCTYPE html><html><head><title>WiFi Setup</title>"+
		"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"></head><body>%s</body></html>", body)
}
