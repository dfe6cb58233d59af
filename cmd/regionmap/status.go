package main

import (
	"errors"
	"io/fs"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

func (s *server) apiStatus(w http.ResponseWriter, _ *http.Request) (int, string) {
	cs := s.cache.Stats()
	defs := s.defs.Load()
	resp := map[string]any{
		"version":    GitTag,
		"commit":     CommitHash,
		"started":    humanize.Time(s.started),
		"world":      s.cfg.World.Path,
		"goroutines": runtime.NumGoroutine(),
		"cache": map[string]any{
			"root":     cs.Root,
			"images":   cs.Cached,
			"unsaved":  cs.Unsaved,
			"hits":     cs.Hits,
			"misses":   cs.Misses,
			"evicted":  cs.Evicted,
			"failures": cs.Failures,
		},
		"definitions": map[string]any{
			"name":   defs.Name,
			"file":   defs.Filename,
			"blocks": defs.Len(),
		},
	}
	if avg, err := load.Avg(); err == nil {
		resp["load"] = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if virtmem, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = humanize.Bytes(virtmem.Used) + " / " + humanize.Bytes(virtmem.Total)
	}
	if uptime, err := host.Uptime(); err == nil {
		resp["host_uptime"] = (time.Duration(uptime) * time.Second).String()
	}
	return marshalOrFail(200, resp)
}

type shaderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Default     bool   `json:"default"`
}

func (s *server) apiShaders(w http.ResponseWriter, _ *http.Request) (int, string) {
	ret := []shaderInfo{}
	for i, sh := range renderers.Shaders {
		ret = append(ret, shaderInfo{
			Name:        sh.Name,
			DisplayName: sh.DisplayName,
			Default:     i == 0,
		})
	}
	return marshalOrFail(200, ret)
}

type regionInfo struct {
	X         int    `json:"x"`
	Z         int    `json:"z"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
}

func (s *server) apiRegions(w http.ResponseWriter, r *http.Request) (int, string) {
	dim := mux.Vars(r)["dim"]
	files, err := region.ListRegionFiles(s.dimensionDir(dim))
	if errors.Is(err, fs.ErrNotExist) {
		return apiError(r, 404, "dimension "+dim+" has no regions")
	}
	if err != nil {
		s.l.Error("listing regions failed", zap.String("dim", dim), zap.Error(err))
		return apiError(r, 500, err.Error())
	}
	ret := make([]regionInfo, 0, len(files))
	for _, f := range files {
		ret = append(ret, regionInfo{
			X:         f.Coords.X,
			Z:         f.Coords.Z,
			Size:      f.Size,
			SizeHuman: humanize.Bytes(uint64(f.Size)),
		})
	}
	return marshalOrFail(200, ret)
}
