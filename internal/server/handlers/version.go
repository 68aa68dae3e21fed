package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/quotagate/quotagate/internal/appid"
)

type buildInfo struct {
	version, commit, date string
	identity              *appid.Identity
}

var (
	buildMu sync.RWMutex
	build   = buildInfo{version: "dev", commit: "unknown", date: "unknown"}
)

// SetVersionInfo records the ldflags-injected build metadata served on
// /version.
func SetVersionInfo(version, commit, buildDate string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	build.version, build.commit, build.date = version, commit, buildDate
}

// SetAppIdentity overrides the name reported on /version. nil restores the
// default identity.
func SetAppIdentity(identity *appid.Identity) {
	buildMu.Lock()
	defer buildMu.Unlock()
	build.identity = identity
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
	EnvPrefix string `json:"env_prefix,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler reports build, dependency and runtime details.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	buildMu.RLock()
	info := build
	buildMu.RUnlock()

	identity := info.identity
	if identity == nil {
		def := appid.Default()
		identity = &def
	}
	name := identity.BinaryName
	if name == "" && len(os.Args) > 0 {
		name = filepath.Base(os.Args[0])
	}

	deps := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      name,
			Version:   info.version,
			Commit:    info.commit,
			BuildDate: info.date,
			GoVersion: runtime.Version(),
			EnvPrefix: identity.EnvPrefix,
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
