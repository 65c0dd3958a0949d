package app

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/info"
	"github.com/drblury/stsgateway/responder"
)

// Version and Commit are set at link time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = ""
)

// BuildInfo is the body of GET /version.
type BuildInfo struct {
	Version   string
	GitCommit string `json:",omitempty"`
	GoVersion string
}

func currentBuild() BuildInfo {
	build := BuildInfo{Version: Version, GitCommit: Commit, GoVersion: runtime.Version()}
	if build.GitCommit != "" {
		return build
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			if setting.Key == "vcs.revision" {
				build.GitCommit = setting.Value
			}
		}
	}
	return build
}

// versionOperation publishes build information as an anonymous operation.
func versionOperation(r *responder.Responder) dispatch.Operation {
	handler := info.NewInfoHandler(
		info.WithInfoResponder(r),
		info.WithInfoProvider(func() any { return currentBuild() }),
	)
	return dispatch.Operation{
		ID:        "getVersion",
		Method:    http.MethodGet,
		Path:      "/version",
		Summary:   "Build information",
		Tags:      []string{"Info"},
		Response:  BuildInfo{},
		Anonymous: true,
		Handler:   http.HandlerFunc(handler.GetVersion),
	}
}
