package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	transcript "github.com/rwth-i6/rasr-sub008"
	"github.com/rwth-i6/rasr-sub008/decoder"
	"github.com/rwth-i6/rasr-sub008/internal/scorefile"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

type decodeOptions struct {
	config      string
	lexicon     string
	lm          string
	search      string
	lattice     bool
	traceback   bool
	ref         string
	metricsAddr string
	jobs        int
}

var decodeOpts decodeOptions

var decodeCmd = &cobra.Command{
	Use:   "decode [flags] SCORES...",
	Short: "Decode score files, one segment per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(cmd.Context(), cmd.OutOrStdout(), decodeOpts, args)
	},
}

func init() {
	f := decodeCmd.Flags()
	f.StringVarP(&decodeOpts.config, "config", "c", "", "YAML configuration file (default $TRANSCRIPT_CONFIG)")
	f.StringVar(&decodeOpts.lexicon, "lexicon", "", "lexicon file, overrides the configuration")
	f.StringVar(&decodeOpts.lm, "lm", "", "ARPA language model, overrides the configuration")
	f.StringVar(&decodeOpts.search, "search", "", "search algorithm: greedy or beam")
	f.BoolVar(&decodeOpts.lattice, "lattice", false, "print the word lattice of every segment")
	f.BoolVar(&decodeOpts.traceback, "traceback", false, "print the traceback of every segment")
	f.StringVar(&decodeOpts.ref, "ref", "", "space-separated reference words; reports the word error rate")
	f.StringVar(&decodeOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :2112")
	f.IntVarP(&decodeOpts.jobs, "jobs", "j", 4, "number of files decoded in parallel")
	rootCmd.AddCommand(decodeCmd)
}

func loadConfig(opts decodeOptions) (transcript.FileConfig, error) {
	cfg := transcript.DefaultFileConfig()
	if opts.config == "" {
		opts.config = os.Getenv("TRANSCRIPT_CONFIG")
	}
	if opts.config != "" {
		var err error
		if cfg, err = transcript.LoadConfigFile(opts.config); err != nil {
			return cfg, err
		}
	}
	if opts.lexicon != "" {
		cfg.Lexicon = opts.lexicon
	}
	if opts.lm != "" {
		cfg.LanguageModel = opts.lm
	}
	if opts.search != "" {
		cfg.Search = opts.search
	}
	if cfg.Lexicon == "" {
		return cfg, errors.New("no lexicon given, use --lexicon or a config file")
	}
	return cfg, nil
}

func runDecode(ctx context.Context, w io.Writer, opts decodeOptions, files []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	stats := decoder.NewStatistics(reg)
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	outputs := make([]*transcript.Transcript, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for i, path := range files {
		g.Go(func() error {
			log := logrus.WithField("file", path)
			rec, err := transcript.NewRecognizerFromConfig(cfg, transcript.WithLogger(log), transcript.WithStatistics(stats))
			if err != nil {
				return err
			}
			frames, err := scorefile.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read scores: %w", err)
			}
			out, err := rec.Recognize(gctx, frames)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.WithFields(logrus.Fields{
				"segment": out.SegmentID,
				"frames":  len(frames),
				"words":   len(out.Words),
			}).Debug("decoded")
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var ref []string
	if opts.ref != "" {
		ref = strings.Fields(opts.ref)
	}
	for i, out := range outputs {
		if err := writeTranscript(w, files[i], out, opts, ref); err != nil {
			return err
		}
	}
	return nil
}

func writeTranscript(w io.Writer, name string, out *transcript.Transcript, opts decodeOptions, ref []string) error {
	if _, err := fmt.Fprintf(w, "%s\t%s\t%.4f\n", name, out.Text, out.Score); err != nil {
		return err
	}
	if ref != nil {
		hyp := strings.Fields(out.Text)
		if _, err := fmt.Fprintf(w, "%s\terrors=%d\twer=%.4f\n", name, lexicon.EditDistance(hyp, ref), lexicon.ErrorRate(hyp, ref)); err != nil {
			return err
		}
	}
	if opts.traceback {
		if err := out.Traceback.Write(w); err != nil {
			return err
		}
	}
	if opts.lattice {
		if err := out.Lattice.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("metrics server failed")
		}
	}()
	logrus.WithField("addr", addr).Info("serving metrics")
	return srv
}
