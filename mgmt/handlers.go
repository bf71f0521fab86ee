package mgmt

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vepnet/tgen/core/version"
	"github.com/vepnet/tgen/gen"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/registry"
	"github.com/vepnet/tgen/rfc2544"
)

// ScanTimeout bounds one on-demand neighbor scan per port.
const ScanTimeout = 2 * time.Second

type statusBody struct {
	Version      string           `json:"version"`
	Capabilities gen.Capabilities `json:"capabilities"`
	Running      bool             `json:"running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := false
	for _, pr := range s.g.Registry().List() {
		if pr.State().IsActive() {
			running = true
			break
		}
	}
	writeJSON(w, http.StatusOK, statusBody{
		Version:      version.V.Version,
		Capabilities: s.g.Capabilities(),
		Running:      running,
	})
}

func (s *Server) handleListPorts(w http.ResponseWriter, r *http.Request) {
	type portJSON struct {
		port.Config
		Up        bool                `json:"up"`
		Counters  port.Counters       `json:"counters"`
		Neighbors *port.NeighborCache `json:"neighbors,omitempty"`
	}
	ports := []portJSON{}
	for _, p := range port.List() {
		ports = append(ports, portJSON{
			Config:    p.Config(),
			Up:        p.IsUp(),
			Counters:  p.Counters(),
			Neighbors: p.NeighborCache(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ports": ports})
}

type profileJSON struct {
	profile.Config
	State    profile.State    `json:"state"`
	Counters profile.Counters `json:"counters"`
	Failure  string           `json:"failure,omitempty"`
}

func (s *Server) profileJSON(name string) (profileJSON, error) {
	r := s.g.Registry().Get(name)
	if r == nil {
		return profileJSON{}, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	pj := profileJSON{Config: r.Config(), State: r.State(), Counters: r.Counters()}
	if e := r.Failure(); e != nil {
		pj.Failure = e.Error()
	}
	return pj, nil
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := []profileJSON{}
	for _, pr := range s.g.Registry().List() {
		if pj, e := s.profileJSON(pr.Config().Name); e == nil {
			profiles = append(profiles, pj)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

type createResponse struct {
	Name     string   `json:"name"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var cfg profile.Config
	if e := json.NewDecoder(r.Body).Decode(&cfg); e != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: e.Error()})
		return
	}
	warns, e := s.g.Registry().Add(cfg)
	if e != nil {
		if errors.Is(e, registry.ErrExists) {
			writeJSON(w, http.StatusConflict, errorBody{Error: e.Error()})
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: e.Error()})
		}
		return
	}
	s.saved()
	writeJSON(w, http.StatusOK, createResponse{Name: cfg.Name, Warnings: warns})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	pr := s.g.Registry().Get(name)
	if pr == nil {
		writeErr(w, fmt.Errorf("%w: %s", registry.ErrNotFound, name))
		return
	}

	// Partial update: unknown fields keep their current values.
	next := pr.Config()
	if e := json.NewDecoder(r.Body).Decode(&next); e != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: e.Error()})
		return
	}
	warns, e := s.g.Registry().Update(name, next)
	if e != nil {
		if errors.Is(e, registry.ErrFrozen) || errors.Is(e, registry.ErrNotFound) {
			writeErr(w, e)
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: e.Error()})
		}
		return
	}
	s.saved()
	pj, _ := s.profileJSON(name)
	writeJSON(w, http.StatusOK, struct {
		profileJSON
		Warnings []string `json:"warnings,omitempty"`
	}{pj, warns})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	reg := s.g.Registry()
	pr := reg.Get(name)
	if pr == nil {
		writeErr(w, fmt.Errorf("%w: %s", registry.ErrNotFound, name))
		return
	}
	if pr.State().IsActive() {
		if e := reg.Disable(name); e != nil {
			writeErr(w, e)
			return
		}
	}
	if e := reg.Delete(name); e != nil {
		writeErr(w, e)
		return
	}
	s.saved()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEnableProfile(w http.ResponseWriter, r *http.Request) {
	if e := s.g.Registry().Enable(r.PathValue("name")); e != nil {
		writeErr(w, e)
		return
	}
	s.saved()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDisableProfile(w http.ResponseWriter, r *http.Request) {
	if e := s.g.Registry().Disable(r.PathValue("name")); e != nil {
		writeErr(w, e)
		return
	}
	s.saved()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	started := s.g.Registry().StartAll()
	if started == nil {
		started = []string{}
	}
	s.saved()
	writeJSON(w, http.StatusOK, map[string]any{"started": started})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.g.Registry().StopAll()
	s.saved()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.g.Registry().Snapshot())
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile string `json:"profile"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if e := s.g.Registry().ResetStats(body.Profile); e != nil {
		writeErr(w, e)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatsExport(w http.ResponseWriter, r *http.Request) {
	st := s.g.Registry().Snapshot()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tgen-stats.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"kind", "name", "state", "frames", "bytes", "dropped", "dupEmits", "reorderEvents", "shaperOverruns"})
	for _, p := range port.List() {
		cnt := st.Ports[p.Name()]
		cw.Write([]string{"port", p.Name(), upDown(p.IsUp()),
			strconv.FormatUint(cnt.TxFrames, 10),
			strconv.FormatUint(cnt.TxBytes, 10),
			strconv.FormatUint(cnt.TxDropped, 10), "", "", ""})
	}
	for _, pr := range s.g.Registry().List() {
		name := pr.Config().Name
		ps := st.Profiles[name]
		cw.Write([]string{"profile", name, string(ps.State),
			strconv.FormatUint(ps.Counters.FramesSent, 10),
			strconv.FormatUint(ps.Counters.BytesSent, 10),
			strconv.FormatUint(ps.Counters.LossDrops, 10),
			strconv.FormatUint(ps.Counters.DupEmits, 10),
			strconv.FormatUint(ps.Counters.ReorderEvents, 10),
			strconv.FormatUint(ps.Counters.ShaperOverruns, 10)})
	}
	cw.Flush()
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Interfaces []string `json:"interfaces"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	want := map[string]bool{}
	for _, name := range body.Interfaces {
		want[name] = true
	}

	caches := map[string]*port.NeighborCache{}
	for _, p := range port.List() {
		if len(want) > 0 && !want[p.Name()] {
			continue
		}
		if r.Context().Err() != nil {
			writeErr(w, context.DeadlineExceeded)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), ScanTimeout)
		nc, e := s.g.Prober().ScanPort(ctx, p)
		cancel()
		if e != nil {
			// A failed scan keeps the previous cache.
			nc = p.NeighborCache()
		}
		caches[p.Name()] = nc
	}
	writeJSON(w, http.StatusOK, map[string]any{"neighbors": caches})
}

func (s *Server) handleBenchStart(w http.ResponseWriter, r *http.Request) {
	var cfg rfc2544.Config
	if e := json.NewDecoder(r.Body).Decode(&cfg); e != nil || cfg.Profile == "" {
		if e == nil {
			e = errors.New("profile name is required")
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: e.Error()})
		return
	}
	if e := s.g.Driver().Start(cfg); e != nil {
		writeErr(w, e)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": cfg.Profile})
}

func (s *Server) handleBenchResults(w http.ResponseWriter, r *http.Request) {
	res, e := s.g.Driver().Results(r.PathValue("profile"))
	if e != nil {
		writeErr(w, e)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
