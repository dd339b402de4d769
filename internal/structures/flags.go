package structures

import "net/http"

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
	Role       string
}

type Route struct {
	Url     string
	Handler http.Handler
}
