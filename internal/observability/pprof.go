package observability

import (
	"net/http"
	"net/http/pprof"
)

// MountPprof serves the runtime profiles under /debug/pprof/. The trace
// endpoint streams an execution trace for the requested number of seconds.
func MountPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
