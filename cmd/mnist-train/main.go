package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"

	"github.com/billwebb/DL-PyTorch/internal/config"
	"github.com/billwebb/DL-PyTorch/internal/metrics"
	"github.com/billwebb/DL-PyTorch/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/mnist.yaml", "Path to YAML config")
	dataDir := flag.String("data-dir", "", "Override directory holding MNIST IDX files")
	epochs := flag.Int("epochs", 0, "Number of passes over the training set")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "SGD learning rate")
	numWorkers := flag.Int("num-workers", 0, "Number of batch loader workers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log running loss every N steps")
	checkpoint := flag.String("checkpoint", "", "Write trained weights to this path")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:      *dataDir,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *lr,
		NumWorkers:   *numWorkers,
		Seed:         *seed,
		LogEvery:     *logEvery,
		Checkpoint:   *checkpoint,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	runID := uuid.NewString()
	log.Printf("run=%s cpu=%q cores=%d workers=%d", runID, cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cfg.NumWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		RunID:        runID,
		DataDir:      cfg.DataDir,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Hidden:       cfg.Hidden,
		LearningRate: cfg.LearningRate,
		InitScale:    cfg.InitScale,
		Seed:         cfg.Seed,
		LogEvery:     cfg.LogEvery,
		NumWorkers:   cfg.NumWorkers,
		MaxSamples:   cfg.MaxSamples,
		Shuffle:      cfg.Shuffle,
		Checkpoint:   cfg.Checkpoint,
	}

	summary, err := trainer.Run(ctx, runCfg)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	log.Printf("run=%s first test image label=%d class probabilities:\n%s",
		runID, summary.FirstLabel, metrics.FormatProbabilities(summary.Probabilities))
}
