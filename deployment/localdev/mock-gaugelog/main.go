package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type reading struct {
	Timestamp time.Time `json:"timestamp"`
	Pressure  float64   `json:"pressure"`
}

// Serves synthetic two-cycle pressure-rise data so the engine can be run
// locally without a gauge-log deployment.
func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/readings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		start := time.Now().Add(-20 * time.Minute)
		readings := make([]reading, 0, 240)
		// First isolation cycle: 0.02 Pa/s rise from 1 Pa.
		for i := 0; i < 120; i++ {
			ts := start.Add(time.Duration(i) * 2 * time.Second)
			readings = append(readings, reading{Timestamp: ts, Pressure: 1.0 + 0.02*float64(2*i)})
		}
		// Pump-down gap, then a second cycle rising three times faster.
		second := start.Add(10 * time.Minute)
		for i := 0; i < 120; i++ {
			ts := second.Add(time.Duration(i) * 2 * time.Second)
			readings = append(readings, reading{Timestamp: ts, Pressure: 1.0 + 0.06*float64(2*i)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"readings": readings})
	})

	addr := ":9081"
	log.Printf("mock gauge-log listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
