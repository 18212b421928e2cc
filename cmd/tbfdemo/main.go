// Command tbfdemo simulates a stream of keys with potential duplicates
// against a scaling timing bloom filter, the same shape the teacher
// library's examples/main.go demo used for its stable bloom filter, here
// exercising expiration instead of random decay.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Alfex4936/timingbloom/cellarray"
	"github.com/Alfex4936/timingbloom/stbf"
)

// demoConfig is the optional YAML file shape accepted via -config.
type demoConfig struct {
	Capacity  uint64  `yaml:"capacity"`
	Error     float64 `yaml:"error"`
	DecayTime float64 `yaml:"decay_time"`
	Ratio     float64 `yaml:"error_tightening_ratio"`
	Growth    float64 `yaml:"growth_factor"`
}

func loadConfig(path string) (demoConfig, error) {
	cfg := demoConfig{
		Capacity:  100_000,
		Error:     0.01,
		DecayTime: 30,
		Ratio:     stbf.DefaultErrorTighteningRatio,
		Growth:    stbf.DefaultGrowthFactor,
	}
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file (capacity, error, decay_time, error_tightening_ratio, growth_factor)")
	totalKeys := flag.Int("keys", 200_000, "number of keys to stream through the filter")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	s, err := stbf.New(cfg.Capacity, cfg.Error, cfg.DecayTime,
		stbf.WithErrorTighteningRatio(cfg.Ratio),
		stbf.WithGrowthFactor(cfg.Growth),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building filter: %v\n", err)
		os.Exit(1)
	}
	if err := s.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "starting decay driver: %v\n", err)
		os.Exit(1)
	}
	defer s.Stop()

	maxUserID := *totalKeys / 2 // bias toward duplicates
	seen := make(map[string]bool)
	duplicates, falsePositives := 0, 0

	for i := 0; i < *totalKeys; i++ {
		userID := rand.Intn(maxUserID)
		username := fmt.Sprintf("user_%d", userID)

		ok, err := s.Contains([]byte(username))
		if err != nil {
			fmt.Fprintf(os.Stderr, "contains: %v\n", err)
			os.Exit(1)
		}
		if ok {
			if seen[username] {
				duplicates++
			} else {
				falsePositives++
			}
		} else if err := s.Add([]byte(username)); err != nil {
			fmt.Fprintf(os.Stderr, "add: %v\n", err)
			os.Exit(1)
		}
		seen[username] = true
	}

	fmt.Printf("Streamed %d keys through %d filters\n", *totalKeys, s.NumFilters())
	fmt.Printf("Duplicates detected: %d\n", duplicates)
	fmt.Printf("False positives: %d\n", falsePositives)
	fmt.Printf("Expected aggregate error: %.4f%%\n", s.ExpectedError()*100)

	time.Sleep(10 * time.Millisecond) // let the decay driver settle before exit
	firstFilter := cellarray.NewSizing(cfg.Capacity, cfg.Error*(1-cfg.Ratio))
	fmt.Printf("Approx footprint of first filter: %s\n", humanize.Bytes(firstFilter.M))
}
