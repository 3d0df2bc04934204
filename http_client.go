package main

import (
	"log"
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 90 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient applies the configured timeout to the shared
// client used for vision calls and returns the value it settled on.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	} else {
		log.Printf("external http timeout not set, using default %s", defaultExternalHTTPTimeout)
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}
