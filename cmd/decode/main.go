// Command decode runs the beam search decoder over a YAML corpus of feature
// matrices and writes one lattice document per decodable utterance.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"

	spin "github.com/ieee0824/spin-go"
	"github.com/ieee0824/spin-go/corpus"
	"github.com/ieee0824/spin-go/decoder"
	"github.com/ieee0824/spin-go/feature"
	"github.com/ieee0824/spin-go/internal/blas"
)

func main() {
	graphPath := flag.String("graph", "", "path to the search network (text format)")
	featPath := flag.String("features", "", "YAML corpus of feature matrices (- for stdin)")
	outPath := flag.String("output", "-", "output YAML path (- for stdout)")
	scorerType := flag.String("scorer-type", "gmm", "acoustic model type: gmm or nnet")
	scorerPath := flag.String("scorer", "", "path to the acoustic model")
	cfgPath := flag.String("config", "", "YAML decoder config; explicit flags override it")
	acscale := flag.Float64("acscale", 0.2, "acoustic scale")
	beam := flag.Float64("beam", 15, "beam width")
	maxActive := flag.Int("maxactive", 8000, "maximum active hypotheses per frame")
	maxBranch := flag.Int("maxbranch", 1, "hypotheses kept per merge point")
	outputTag := flag.String("outputtag", "decoded", "output key holding the lattice")
	cmn := flag.Bool("cmn", false, "subtract the utterance mean from every feature dimension")
	cvn := flag.Bool("cvn", false, "scale every feature dimension to unit variance (with -cmn)")
	deltas := flag.Bool("deltas", false, "append delta and delta-delta coefficients")
	workers := flag.Int("workers", defaultWorkers(), "number of utterances decoded in parallel")
	verbose := flag.Bool("v", false, "log per-frame search statistics")
	flag.Parse()

	if *graphPath == "" || *featPath == "" || *scorerPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: decode -graph NET -scorer MODEL -features CORPUS.yaml [-output OUT.yaml]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("run", uuid.New().String())
	logger.Info("starting",
		"cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"avx2", cpuid.CPU.Supports(cpuid.AVX2),
		"fma", cpuid.CPU.Supports(cpuid.FMA3),
		"accelerate", blas.HasAccelerate(),
		"workers", *workers)

	cfg := decoder.Config{
		MaxActive:     *maxActive,
		BeamWidth:     float32(*beam),
		AcousticScale: float32(*acscale),
		MaxBranch:     *maxBranch,
	}
	if *cfgPath != "" {
		var err error
		if cfg, err = loadConfig(*cfgPath, cfg); err != nil {
			fatal(logger, err)
		}
	}

	rec, err := spin.NewRecognizer(*graphPath, spin.ScorerType(*scorerType), *scorerPath,
		spin.WithDecoderConfig(cfg),
		spin.WithWorkers(*workers),
		spin.WithLogger(logger),
	)
	if err != nil {
		fatal(logger, err)
	}

	utts, err := readCorpus(*featPath)
	if err != nil {
		fatal(logger, err)
	}
	featCfg := feature.Config{UseCMN: *cmn, UseCVN: *cvn, UseDelta: *deltas, UseDeltaDelta: *deltas}
	prepareFeatures(utts, featCfg)
	logger.Info("corpus loaded", "utterances", len(utts),
		"cmn", featCfg.UseCMN, "cvn", featCfg.UseCVN, "deltas", featCfg.UseDelta,
		"max_active", cfg.MaxActive, "beam", cfg.BeamWidth,
		"acscale", cfg.AcousticScale, "max_branch", cfg.MaxBranch)

	out, closeOut, err := openOutput(*outPath)
	if err != nil {
		fatal(logger, err)
	}
	w := corpus.NewWriter(out, *outputTag)

	begin := time.Now()
	var decoded, skipped, frames int
	err = rec.RecognizeAll(context.Background(), utts, func(r *spin.Result) error {
		u, o := r.Utterance, r.Outcome
		if o.Status == decoder.StatusExhausted {
			skipped++
			logger.Warn("cannot reach a final state", "key", u.Key,
				"frames", o.Frames, "exhausted_at", o.ExhaustedAt)
			return nil
		}
		decoded++
		frames += o.Frames
		logger.Info("decoded", "key", u.Key, "frames", o.Frames,
			"best_cost", o.BestCost,
			"states", o.Lattice.NumStates(), "arcs", o.Lattice.NumArcs(),
			"fps", fps(o.Frames, o.Elapsed))
		return w.Write(&corpus.Result{
			Key:      u.Key,
			Tags:     u.Tags,
			Frames:   o.Frames,
			Elapsed:  o.Elapsed,
			BestCost: o.BestCost,
			Lattice:  o.Lattice,
		})
	})
	if err != nil {
		fatal(logger, err)
	}
	if err := w.Close(); err != nil {
		fatal(logger, err)
	}
	if err := closeOut(); err != nil {
		fatal(logger, err)
	}
	elapsed := time.Since(begin)
	logger.Info("done", "decoded", decoded, "skipped", skipped,
		"elapsed", elapsed.Round(time.Millisecond), "fps", fps(frames, elapsed))
}

func defaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// loadConfig overlays the YAML file on the decoder defaults, then reapplies
// every flag given on the command line.
func loadConfig(path string, flags decoder.Config) (decoder.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return decoder.Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()
	cfg, err := decoder.LoadConfig(f)
	if err != nil {
		return decoder.Config{}, errors.Wrapf(err, "load config %s", path)
	}
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "acscale":
			cfg.AcousticScale = flags.AcousticScale
		case "beam":
			cfg.BeamWidth = flags.BeamWidth
		case "maxactive":
			cfg.MaxActive = flags.MaxActive
		case "maxbranch":
			cfg.MaxBranch = flags.MaxBranch
		}
	})
	return cfg, nil
}

func readCorpus(path string) ([]*corpus.Utterance, error) {
	if path == "-" {
		return corpus.ReadAll(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open features")
	}
	defer f.Close()
	return corpus.ReadAll(f)
}

// prepareFeatures runs the feature transforms on every utterance before decoding.
func prepareFeatures(utts []*corpus.Utterance, cfg feature.Config) {
	if !cfg.Enabled() {
		return
	}
	for _, u := range utts {
		u.Features = cfg.Apply(u.Features)
	}
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output")
	}
	return f, f.Close, nil
}

func fps(frames int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(frames) / d.Seconds()
}

func fatal(logger *slog.Logger, err error) {
	logger.Error("fatal", "err", fmt.Sprintf("%+v", err))
	os.Exit(1)
}
