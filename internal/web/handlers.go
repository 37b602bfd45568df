package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/auth"
	"github.com/eddwatts/BellTimer/internal/display"
	"github.com/eddwatts/BellTimer/internal/metrics"
)

type errorResponse struct {
	Error string `json:"error"`
}

type holidayStatusResponse struct {
	HolidayMode bool `json:"holiday_mode"`
}

type scheduleStatusResponse struct {
	ActiveSchedule string            `json:"active_schedule"`
	Schedules      []string          `json:"schedules,omitempty"`
	NextBell       *nextBellResponse `json:"next_bell,omitempty"`
}

type nextBellResponse struct {
	Day  string `json:"day"`
	Time string `json:"time"`
	Name string `json:"name,omitempty"`
}

const pageStyle = `<style>body{font-family:sans-serif;background-color:#333;color:#fff;margin:15px;}` +
	`button,input,select{padding:10px;margin:5px;border-radius:5px;border:none;cursor:pointer;}` +
	`table{width:100%;border-collapse:collapse;}th,td{padding:8px;border:1px solid #555;text-align:left;}</style>`

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}

	now := s.clk.LocalNow()
	nextBell := "None"
	if s.st.Holiday {
		nextBell = "DISABLED"
	} else if nb := s.st.NextBell; nb != nil {
		nextBell = fmt.Sprintf("%s at %s - %s", nb.DayName, nb.Event.Time, nb.Event.BellName)
	}

	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Bell Controller</title>"+
		"<meta name='viewport' content='width=device-width, initial-scale=1.0'>%s</head><body>", pageStyle)
	fmt.Fprintf(w, "<h1>Bell Controller</h1><p><strong>Time:</strong> %s</p><p><strong>Next Bell:</strong> %s</p>",
		now.Timestamp(), html(nextBell))

	onOff, action, color := "OFF", "holidayon", "red"
	if s.st.Holiday {
		onOff, action, color = "ON", "holidayoff", "green"
	}
	fmt.Fprintf(w, "<hr><h2>Holiday Mode: %s</h2><form action='/%s' method='post'>"+
		"<button style='background-color:%s;color:white;'>Toggle</button></form>", onOff, action, color)

	fmt.Fprintf(w, "<hr><h2>Schedule Management</h2><p><strong>Active:</strong> %s</p>"+
		"<form action='/set_schedule' method='post'><select name='schedule_name'>", html(s.st.ActiveSchedule))
	if s.st.Manifest != nil {
		for _, name := range s.st.Manifest.Names() {
			selected := ""
			if name == s.st.ActiveSchedule {
				selected = " selected"
			}
			fmt.Fprintf(w, "<option value='%s'%s>%s</option>", html(name), selected, html(name))
		}
	}
	fmt.Fprint(w, "</select><input type='submit' value='Set Active'></form>")
	fmt.Fprint(w, "<p><strong>Quick Sets:</strong></p>"+
		"<form action='/set_schedule_normal' method='post' style='display:inline-block;'><button>Set Normal Day</button></form>"+
		"<form action='/set_schedule_half' method='post' style='display:inline-block;'><button>Set Half Day</button></form>")

	fmt.Fprint(w, "<hr><h2>Controls</h2><form action='/force-update' method='post'><button>Force Update</button></form>")
	for _, rc := range s.cfg.Relays {
		fmt.Fprintf(w, "<form action='/test-relay/%d' method='post' style='display:inline-block;'>"+
			"<button>Test Relay %d</button></form>", rc.Channel, rc.Channel)
	}
	fmt.Fprint(w, "<hr><h2>Software Update</h2><form action='/update-check' method='post'>"+
		"<button style='background-color:#555;color:white;'>Check for Updates</button></form>")
	fmt.Fprint(w, "<hr><h2>Diagnostics</h2><p><a href='/diagnostics'>View Full Diagnostics</a> | "+
		"<a href='/log'>Event Log</a> | <a href='/logout'>Log Out</a></p></body></html>")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.loginPage(w, "")
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid form payload")
		return
	}

	token, ok := s.guard.Login(r.PostFormValue("password"))
	if !ok {
		s.events.Append("warn", "failed login attempt from "+r.RemoteAddr)
		metrics.Count("auth.failure", 1, "kind:login")
		w.WriteHeader(http.StatusUnauthorized)
		s.loginPage(w, "Wrong password")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	s.events.Append("info", "login from "+r.RemoteAddr)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) loginPage(w http.ResponseWriter, message string) {
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Login</title>"+
		"<meta name='viewport' content='width=device-width, initial-scale=1.0'>%s</head><body>"+
		"<h1>Bell Controller Login</h1>", pageStyle)
	if message != "" {
		fmt.Fprintf(w, "<p style='color:#f66;'>%s</p>", html(message))
	}
	fmt.Fprint(w, "<form action='/login' method='post'><label for='password'>Password:</label><br>"+
		"<input type='password' id='password' name='password'><br>"+
		"<input type='submit' value='Log In'></form></body></html>")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.guard.Logout()
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Diagnostics</title><meta http-equiv='refresh' content='10'>"+
		"<meta name='viewport' content='width=device-width, initial-scale=1.0'>%s</head><body><h1>Diagnostics</h1>", pageStyle)

	fmt.Fprintf(w, "<h2>System</h2><table><tr><td>Version</td><td>%s</td></tr>"+
		"<tr><td>Uptime</td><td>%s</td></tr></table>", html(s.cfg.Version), s.st.Uptime())

	fmt.Fprintf(w, "<h2>Network</h2><table><tr><td>IP</td><td>%s</td></tr>"+
		"<tr><td>RSSI</td><td>%ddBm</td></tr></table>", html(s.st.IPAddress), s.st.RSSI)

	fmt.Fprint(w, "<h2>Application</h2><table>")
	for _, rc := range s.cfg.Relays {
		status := "OFF"
		if rs := s.st.Relays[rc.Channel]; rs != nil && rs.On {
			status = "ON"
		}
		fmt.Fprintf(w, "<tr><td>Relay %d</td><td>%s</td></tr>", rc.Channel, status)
	}
	holiday := "OFF"
	if s.st.Holiday {
		holiday = "ON"
	}
	fmt.Fprintf(w, "<tr><td>Holiday Mode</td><td>%s</td></tr><tr><td>Last Sync</td><td>%s</td></tr>"+
		"<tr><td>Active Schedule</td><td>%s</td></tr></table><p><a href='/'>&laquo; Back</a></p></body></html>",
		holiday, html(s.st.LastSync), html(s.st.ActiveSchedule))
}

func (s *Server) handleEventLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.events.Recent(200)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event log")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Event Log</title>"+
		"<meta name='viewport' content='width=device-width, initial-scale=1.0'>%s</head><body>"+
		"<h1>Event Log</h1><table><tr><th>Time</th><th>Level</th><th>Event</th></tr>", pageStyle)
	for _, e := range entries {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			e.At.Format("2006-01-02 15:04:05"), html(e.Level), html(e.Message))
	}
	fmt.Fprint(w, "</table><p><a href='/'>&laquo; Back</a></p></body></html>")
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid form payload")
		return
	}
	s.applySchedule(w, r, r.PostFormValue("schedule_name"))
}

func (s *Server) quickSet(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.applySchedule(w, r, name)
	}
}

func (s *Server) applySchedule(w http.ResponseWriter, r *http.Request, name string) {
	if s.st.Manifest == nil || !s.st.Manifest.Has(name) {
		s.writeError(w, http.StatusNotFound, "Schedule name not found")
		return
	}

	s.st.ActiveSchedule = name
	if err := s.store.SaveActiveSchedule(name); err != nil {
		log.Warn().Err(err).Msg("Failed to persist active schedule name")
	}
	if err := s.fetcher.Refresh(); err != nil {
		log.Error().Err(err).Str("schedule", name).Msg("Schedule fetch after set failed")
		s.disp.SetStatus("Fetch Fail", display.Orange)
		s.writeError(w, http.StatusBadGateway, "Schedule set but fetch failed: "+err.Error())
		return
	}

	log.Info().Str("schedule", name).Msg("Active schedule set via web")
	s.events.Append("info", "active schedule set to "+name)
	s.disp.SetStatus("Idle", display.Green)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) holidayHandler(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.st.Holiday = on
		if err := s.store.SaveHoliday(on); err != nil {
			log.Warn().Err(err).Msg("Failed to persist holiday mode")
		}
		word := "off"
		if on {
			word = "on"
		}
		log.Info().Bool("holiday", on).Msg("Holiday mode set via web")
		s.events.Append("info", "holiday mode "+word)
		s.disp.Render()
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	s.disp.SetStatus("Syncing time...", display.Yellow)
	if s.clk.SyncWithRetries(3, s.wdt) {
		s.st.LastSync = s.clk.LocalNow().HHMM()
	}
	if err := s.fetcher.Refresh(); err != nil {
		log.Error().Err(err).Msg("Forced resync failed")
		s.disp.SetStatus("Fetch Fail", display.Orange)
		s.writeError(w, http.StatusBadGateway, "Update failed: "+err.Error())
		return
	}
	s.events.Append("info", "forced resync via web")
	s.disp.SetStatus("Idle", display.Green)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleTestRelay(w http.ResponseWriter, r *http.Request) {
	channel, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/test-relay/"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Relay channel required")
		return
	}

	s.disp.SetStatus(fmt.Sprintf("Relay %d ON", channel), display.Orange)
	if err := s.actuator.Activate(channel, 0); err != nil {
		log.Error().Err(err).Int("channel", channel).Msg("Relay test failed")
		s.disp.SetStatus("Relay Fail", display.Red)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.events.Append("info", fmt.Sprintf("relay %d tested via web", channel))
	metrics.Count("relay.test", 1, fmt.Sprintf("channel:%d", channel))
	s.disp.SetStatus("Idle", display.Green)
	fmt.Fprintf(w, "<h1>Relay %d Tested</h1><p><a href='/'>Back</a></p>", channel)
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	available, version, err := s.updates.Check()
	if err != nil {
		log.Error().Err(err).Msg("Update check failed")
		s.writeError(w, http.StatusBadGateway, "Update check failed: "+err.Error())
		return
	}
	if available {
		s.events.Append("info", "software update available: "+version)
		fmt.Fprintf(w, "<h1>Update available: %s</h1><p><a href='/'>Back</a></p>", html(version))
		return
	}
	fmt.Fprint(w, "<h1>No updates available</h1><p><a href='/'>Back</a></p>")
}

func (s *Server) handleHolidayStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, holidayStatusResponse{HolidayMode: s.st.Holiday})
}

func (s *Server) handleScheduleStatus(w http.ResponseWriter, r *http.Request) {
	resp := scheduleStatusResponse{ActiveSchedule: s.st.ActiveSchedule}
	if s.st.Manifest != nil {
		resp.Schedules = s.st.Manifest.Names()
	}
	// next-bell resolution is holiday-independent; suppression only applies
	// to actuation
	if nb := s.st.NextBell; nb != nil {
		resp.NextBell = &nextBellResponse{Day: nb.DayName, Time: nb.Event.Time, Name: nb.Event.BellName}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&#39;", `"`, "&#34;")

func html(s string) string {
	return htmlReplacer.Replace(s)
}
