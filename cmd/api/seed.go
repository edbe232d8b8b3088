package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
	"github.com/patientvoice/backend/pkg/config"
	"github.com/patientvoice/backend/pkg/utils"
)

var seedAdmissionTypes = []string{utils.AdmissionPlanned, utils.AdmissionEmergency, utils.AdmissionTransfer, utils.AdmissionAmbulant}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Submit generated demo surveys",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			stations, _ := cmd.Flags().GetStringSlice("stations")
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runSeed(count, stations, migrate)
		},
	}
	cmd.Flags().Int("count", 50, "Number of surveys to submit")
	cmd.Flags().StringSlice("stations", []string{"3B", "4A", "ITS"}, "Stations to spread the surveys over")
	cmd.Flags().Bool("migrate", false, "Apply pending migrations first")
	return cmd
}

func runSeed(count int, stations []string, migrate bool) error {
	if count < 1 || len(stations) == 0 {
		return fmt.Errorf("need a positive --count and at least one station")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("seeding the in-memory store has no lasting effect")
	}

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer store.close()

	statsCache, closeCache := openStatsCache(cfg)
	defer closeCache()

	statsService := services.NewSurveyStatsService(store.stats, statsCache, cfg.Stats.CacheTTL, nil)
	surveyService := services.NewSurveyService(store.surveys, statsService, nil)

	for i := 0; i < count; i++ {
		input := demoSurvey(stations[i%len(stations)])
		if _, err := surveyService.Submit(ctx, input); err != nil {
			return fmt.Errorf("failed to submit survey %d: %w", i+1, err)
		}
	}

	log.Info().Int("count", count).Strs("stations", stations).Msg("demo surveys submitted")
	return nil
}

// demoSurvey answers a random subset of the questions, leaning towards the positive end.
func demoSurvey(station string) *services.SubmitSurveyInput {
	answers := make(map[string]interface{})
	for q := 1; q <= 30; q++ {
		if rand.IntN(4) == 0 {
			continue
		}
		score := 1 + rand.IntN(5)
		if score < 3 && rand.IntN(2) == 0 {
			score += 2
		}
		answers["q"+strconv.Itoa(q)] = score
	}

	q33 := 1 + rand.IntN(6)
	input := &services.SubmitSurveyInput{
		Station:       station,
		Room:          strconv.Itoa(100 + rand.IntN(40)),
		AdmissionType: services.StringList{seedAdmissionTypes[rand.IntN(len(seedAdmissionTypes))]},
		LikertAnswers: answers,
		Q33:           q33,
		ClientIP:      "127.0.0.1",
	}
	if rand.IntN(5) == 0 {
		comment := "seeded " + time.Now().UTC().Format(time.DateOnly)
		input.Comment = &comment
	}
	return input
}
