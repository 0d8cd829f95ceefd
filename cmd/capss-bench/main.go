// capss-bench runs keygen/sign/verify cycles for one signature variant
// and reports timings and signature sizes.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/MuriData/capss"
	"github.com/MuriData/capss/pkg/smallwood"
)

func main() {
	variant := flag.Int("variant", 0, "signature variant")
	iterations := flag.Int("n", 1, "number of sign/verify cycles")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	smallwood.SetLogger(log)

	pkLen, skLen, sigMaxLen, err := capss.GetSizes(*variant)
	if err != nil {
		log.Fatal().Err(err).Msg("unknown variant")
	}
	log.Info().
		Int("variant", *variant).
		Int("pk_bytes", pkLen).
		Int("sk_bytes", skLen).
		Int("sig_max_bytes", sigMaxLen).
		Msg("parameters")

	message := make([]byte, 32)
	message[0], message[1], message[2], message[3] = 1, 2, 3, 4

	var keygenTotal, signTotal, verifyTotal time.Duration
	sigTotal := 0
	for i := 0; i < *iterations; i++ {
		start := time.Now()
		pk, sk, err := capss.Keypair(*variant)
		keygenTotal += time.Since(start)
		if err != nil {
			log.Fatal().Err(err).Int("iteration", i).Msg("keypair failed")
		}

		start = time.Now()
		sm, err := capss.SignAttached(*variant, message, sk)
		signTotal += time.Since(start)
		if err != nil {
			log.Fatal().Err(err).Int("iteration", i).Msg("sign failed")
		}
		sigTotal += len(sm) - len(message) - 4

		start = time.Now()
		opened, err := capss.VerifyAttached(*variant, sm, pk)
		verifyTotal += time.Since(start)
		if err != nil {
			log.Fatal().Err(err).Int("iteration", i).Msg("verify failed")
		}
		if len(opened) != len(message) {
			log.Fatal().Int("iteration", i).Msg("opened message size mismatch")
		}
	}

	n := time.Duration(*iterations)
	log.Info().
		Dur("keygen_avg", keygenTotal/n).
		Dur("sign_avg", signTotal/n).
		Dur("verify_avg", verifyTotal/n).
		Int("sig_avg_bytes", sigTotal / *iterations).
		Msg("done")
}
