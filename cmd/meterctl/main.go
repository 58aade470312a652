package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var addr = flag.String("addr", "http://127.0.0.1:8080", "gasmeterd api address")

func main() {
	reading := flag.Float64("reading", -1, "real meter reading to submit")
	timestamp := flag.String("timestamp", "", "reading timestamp, RFC3339. defaults to now")
	noRecalc := flag.Bool("no-recalc", false, "do not recalculate the average rate")
	show := flag.Bool("show", false, "print the current meter state")
	flag.Parse()

	if *show {
		resp, err := http.Get(*addr + "/api/v1/meter")
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()
		io.Copy(log.Writer(), resp.Body)
		return
	}

	if *reading < 0 {
		log.Fatal("missing -reading")
	}

	body := map[string]any{
		"meter_reading":            *reading,
		"recalculate_average_rate": !*noRecalc,
	}
	if *timestamp != "" {
		ts, err := time.Parse(time.RFC3339, *timestamp)
		if err != nil {
			log.Fatal("invalid -timestamp: ", err)
		}
		body["timestamp"] = ts
	}

	b, err := json.Marshal(body)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(*addr+"/api/v1/reading", "application/json", bytes.NewReader(b))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		log.Fatalf("reading rejected (status %d): %s", resp.StatusCode, b)
	}
	fmt.Println("reading accepted")
}
