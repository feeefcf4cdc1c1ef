// Command fecal_eval sweeps loss rates against the FEC-AL codec and the
// RaptorQ baseline, reporting success rates, recovery overhead and codec
// timings. Results are printed as a summary table and optionally written as
// JSONL records.
package main

import (
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fec-al/fecal"
	"github.com/fec-al/fecal/internal/dropper"
	"github.com/fec-al/fecal/internal/eval"
)

type scheme string

const (
	schemeFecal   scheme = "fecal"
	schemeRaptorQ scheme = "raptorq"
)

type resultKey struct {
	Scheme scheme
	K      int
	Loss   float64
}

type agg struct {
	Runs        int
	Successes   int
	LossTotal   int
	Overhead    int
	EncTotal    time.Duration
	DecTotal    time.Duration
}

type allResults map[resultKey]*agg

var (
	trialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fecal_eval_trials_total",
		Help: "Trials executed per scheme.",
	}, []string{"scheme"})
	trialFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fecal_eval_trial_failures_total",
		Help: "Trials that exhausted the recovery budget.",
	}, []string{"scheme"})
)

type jsonRecord struct {
	Scheme      string
	K           int
	SymbolBytes int
	Loss        float64
	Runs        int
	Successes   int
	LossAvg     float64
	OverheadAvg float64
	EncUSTotal  int64
	DecUSTotal  int64
}

func (r *jsonRecord) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("scheme", r.Scheme)
	enc.IntKey("K", r.K)
	enc.IntKey("symbol_bytes", r.SymbolBytes)
	enc.Float64Key("loss", r.Loss)
	enc.IntKey("runs", r.Runs)
	enc.IntKey("successes", r.Successes)
	enc.Float64Key("loss_avg", r.LossAvg)
	enc.Float64Key("overhead_avg", r.OverheadAvg)
	enc.Int64Key("enc_us_total", r.EncUSTotal)
	enc.Int64Key("dec_us_total", r.DecUSTotal)
}

func (r *jsonRecord) IsNil() bool { return r == nil }

func parseLosses(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var f float64
		if _, err := fmt.Sscanf(p, "%f", &f); err != nil {
			return nil, fmt.Errorf("bad loss %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func parseKs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var k int
		if _, err := fmt.Sscanf(p, "%d", &k); err != nil {
			return nil, fmt.Errorf("bad K %q: %w", p, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	var (
		trials      = flag.Int("trials", 1000, "trials per (scheme,K,loss)")
		symbolBytes = flag.Int("symbol-bytes", 1300, "bytes per symbol")
		finalBytes  = flag.Int("final-bytes", 0, "bytes in the final symbol (0 = symbol-bytes)")
		kStr        = flag.String("k", "10,50,200", "comma-separated block sizes")
		lossStr     = flag.String("loss", "0.01,0.05,0.2", "comma-separated loss probabilities")
		maxExtra    = flag.Int("max-extra", 8, "extra recovery symbols beyond the loss count before giving up")
		seed        = flag.Int64("seed", 42, "base random seed")
		workers     = flag.Int("workers", 4, "parallel trials")
		which       = flag.String("scheme", "all", "which scheme to run: fecal|raptorq|all")
		outPath     = flag.String("out", "", "optional JSONL output path")
		metricsAddr = flag.String("metrics", "", "optional prometheus listen address, e.g. :9090")
		burst       = flag.Bool("burst", false, "use a Gilbert-Elliott burst loss process instead of Bernoulli; each -loss value then sets the good-to-bad transition probability")
	)
	flag.Parse()

	if r := fecal.Init(); r != fecal.Success {
		fatalf("fecal init: %s", r)
	}

	ks, err := parseKs(*kStr)
	if err != nil {
		fatalf("%v", err)
	}
	losses, err := parseLosses(*lossStr)
	if err != nil {
		fatalf("%v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics listener: %v\n", err)
			}
		}()
	}

	schemes := []scheme{schemeFecal, schemeRaptorQ}
	switch *which {
	case "all":
	case string(schemeFecal):
		schemes = []scheme{schemeFecal}
	case string(schemeRaptorQ):
		schemes = []scheme{schemeRaptorQ}
	default:
		fatalf("unknown scheme %q", *which)
	}

	results := make(allResults)
	var mu sync.Mutex

	for _, sch := range schemes {
		for _, k := range ks {
			for _, loss := range losses {
				key := resultKey{Scheme: sch, K: k, Loss: loss}
				a := &agg{}
				results[key] = a

				var g errgroup.Group
				g.SetLimit(*workers)
				for trial := 0; trial < *trials; trial++ {
					trial := trial
					g.Go(func() error {
						rng := mrand.New(mrand.NewSource(*seed + int64(trial)*1000003))
						var drop dropper.Dropper
						if *burst {
							drop = dropper.NewGilbertElliott(loss, 0.5, 0.75, rng)
						} else {
							drop = dropper.NewBernoulli(loss, rng)
						}
						params := eval.Params{
							K:           k,
							SymbolBytes: *symbolBytes,
							FinalBytes:  *finalBytes,
							Loss:        drop,
							MaxExtra:    *maxExtra,
							Rng:         rng,
						}

						var res eval.Result
						var err error
						if sch == schemeFecal {
							res, err = eval.RunFecalTrial(params)
						} else {
							res, err = eval.RunRaptorQTrial(params)
						}
						if err != nil {
							return fmt.Errorf("%s K=%d loss=%g trial %d: %w", sch, k, loss, trial, err)
						}

						trialsTotal.WithLabelValues(string(sch)).Inc()
						if !res.Ok {
							trialFailures.WithLabelValues(string(sch)).Inc()
						}

						mu.Lock()
						a.Runs++
						if res.Ok {
							a.Successes++
							a.Overhead += res.Overhead()
						}
						a.LossTotal += res.LossCount
						a.EncTotal += res.EncodeTime
						a.DecTotal += res.DecodeTime
						mu.Unlock()
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					fatalf("%v", err)
				}
			}
		}
	}

	keys := make([]resultKey, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Scheme != b.Scheme {
			return a.Scheme < b.Scheme
		}
		if a.K != b.K {
			return a.K < b.K
		}
		return a.Loss < b.Loss
	})

	fmt.Printf("%-8s %6s %6s %8s %9s %9s %10s %10s\n",
		"scheme", "K", "loss", "success", "loss/run", "ovh/run", "enc_total", "dec_total")
	records := make([]*jsonRecord, 0, len(keys))
	for _, key := range keys {
		a := results[key]
		succRate := float64(a.Successes) / float64(a.Runs)
		lossAvg := float64(a.LossTotal) / float64(a.Runs)
		ovhAvg := 0.0
		if a.Successes > 0 {
			ovhAvg = float64(a.Overhead) / float64(a.Successes)
		}
		fmt.Printf("%-8s %6d %6.3f %7.1f%% %9.2f %9.3f %10s %10s\n",
			key.Scheme, key.K, key.Loss, 100*succRate, lossAvg, ovhAvg,
			a.EncTotal.Round(time.Millisecond), a.DecTotal.Round(time.Millisecond))

		records = append(records, &jsonRecord{
			Scheme:      string(key.Scheme),
			K:           key.K,
			SymbolBytes: *symbolBytes,
			Loss:        key.Loss,
			Runs:        a.Runs,
			Successes:   a.Successes,
			LossAvg:     lossAvg,
			OverheadAvg: ovhAvg,
			EncUSTotal:  a.EncTotal.Microseconds(),
			DecUSTotal:  a.DecTotal.Microseconds(),
		})
	}

	if *outPath != "" {
		if err := writeRecords(*outPath, records); err != nil {
			fatalf("write %s: %v", *outPath, err)
		}
		fmt.Printf("wrote %d records to %s\n", len(records), *outPath)
	}
}

func writeRecords(path string, records []*jsonRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, rec := range records {
		line, err := gojay.MarshalJSONObject(rec)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return f.Sync()
}
