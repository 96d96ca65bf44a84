package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Switch           http.HandlerFunc
	SwitchStatus     http.HandlerFunc
	MainChart        http.HandlerFunc
	TodayConsumption http.HandlerFunc
	Current          http.HandlerFunc
	WS               http.HandlerFunc
	Health           http.HandlerFunc
	Metrics          http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Switch != nil {
		mux.Handle("/switch", method(http.MethodPost, routes.Switch))
	}
	if routes.SwitchStatus != nil {
		mux.Handle("/switch-status", method(http.MethodGet, routes.SwitchStatus))
	}
	if routes.MainChart != nil {
		mux.Handle("/main-chart/data", method(http.MethodGet, routes.MainChart))
	}
	if routes.TodayConsumption != nil {
		mux.Handle("/today-consumption", method(http.MethodGet, routes.TodayConsumption))
	}
	if routes.Current != nil {
		mux.Handle("/current", method(http.MethodGet, routes.Current))
	}
	if routes.WS != nil {
		mux.Handle("/ws", method(http.MethodGet, routes.WS))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
