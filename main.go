package main

import (
	"log"
)

func main() {
	cfg := LoadConfig()

	appliedTimeout := ConfigureExternalHTTPClient(cfg.VisionHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Provider=%s DB=%s Listen=%s VisionTimeout=%s WarnDays=%d DefaultExpiryDays=%d",
		cfg.VisionProvider, cfg.DBPath, cfg.ListenAddr, appliedTimeout, cfg.ExpiryWarnDays, cfg.DefaultExpiryDays,
	)

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	// Catch up on statuses that drifted while the process was down, then
	// keep them fresh on the daily schedule.
	if updated, err := RunExpirySweep(cfg, db); err != nil {
		log.Printf("Startup expiry sweep error: %v", err)
	} else if updated > 0 {
		log.Printf("Startup expiry sweep reclassified %d items", updated)
	}
	StartExpirySweepScheduler(cfg, db)

	srv, err := NewServer(cfg, db)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	e := srv.BuildEcho()
	log.Println("Starting Kjøleskapet API...")
	if err := e.Start(cfg.ListenAddr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
