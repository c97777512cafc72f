package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/client"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var visitReasons = []string{
	"annual checkup",
	"follow-up",
	"vaccination",
	"lab results",
	"back pain",
	"skin rash",
	"prescription renewal",
	"headache",
}

type SimConfig struct {
	APIBaseURL     string        `envconfig:"SIM_API_BASE_URL" default:"http://localhost:8080"`
	Duration       time.Duration `envconfig:"SIM_DURATION" default:"30s"`
	Workers        int           `envconfig:"SIM_WORKERS" default:"10"`
	BookingRatio   float64       `envconfig:"SIM_BOOKING_RATIO" default:"0.5"`
	ChangeRatio    float64       `envconfig:"SIM_CHANGE_RATIO" default:"0.2"`
	ReadRatio      float64       `envconfig:"SIM_READ_RATIO" default:"0.3"`
	PatientLimit   int           `envconfig:"SIM_PATIENT_LIMIT" default:"4000"`
	DoctorLimit    int           `envconfig:"SIM_DOCTOR_LIMIT" default:"20"`
	Days           int           `envconfig:"SIM_DAYS" default:"3"`
	ConflictWindow time.Duration `envconfig:"CONFLICT_WINDOW" default:"30m"`
	PostgresDSN    string        `envconfig:"POSTGRES_DSN" required:"true"`
	Env            string        `envconfig:"APP_ENV" default:"dev"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

// DataPool holds the registry ids drawn from and the appointments created
// during the run.
type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID

	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

// Record files one call. 404 and 409 answers count as conflicts: they are
// the engine refusing a request, not failing it.
func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)

	var apiErr *client.APIError
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusNotFound):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Schedule    OperationMetrics
	Reschedule  OperationMetrics
	Transition  OperationMetrics
	ProcessNext OperationMetrics
	Undo        OperationMetrics
	ListDoctor  OperationMetrics
	Report      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	api     *client.Client
	metrics Metrics
	day0    time.Time
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	var cfg SimConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	logger := logging.Init("simulate", cfg.Env, cfg.LogLevel)

	if err := validateConfig(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("change", cfg.ChangeRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("doctors", len(dataPool.Doctors)).
		Msg("data pool loaded")

	tomorrow := time.Now().AddDate(0, 0, 1)
	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		api:    client.New(cfg.APIBaseURL, &http.Client{Timeout: 10 * time.Second}),
		day0:   time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.Local),
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()

	if err := sim.VerifySpacing(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("double booking detected")
	}
	logger.Info().Msg("no double bookings found")
}

func validateConfig(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return errors.New("SIM_DAYS must be > 0")
	}

	total := cfg.BookingRatio + cfg.ChangeRatio + cfg.ReadRatio
	if total <= 0 {
		return errors.New("operation ratios must sum to more than 0")
	}
	cfg.BookingRatio /= total
	cfg.ChangeRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load patients")
	}
	if dp.Patients, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID]); err != nil {
		return nil, errors.Wrap(err, "load patients")
	}

	rows, err = pool.Query(ctx, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load doctors")
	}
	if dp.Doctors, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID]); err != nil {
		return nil, errors.Wrap(err, "load doctors")
	}

	if len(dp.Patients) == 0 {
		return nil, errors.New("no patients loaded, run cmd/seed first")
	}
	if len(dp.Doctors) == 0 {
		return nil, errors.New("no doctors loaded, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Msg("simulation running")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := time.Now().UnixNano() + int64(workerID)
	rng := rand.New(rand.NewSource(seed))
	faker := gofakeit.New(uint64(seed))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doSchedule(ctx, rng, faker)
		case r < s.config.BookingRatio+s.config.ChangeRatio:
			s.doChange(ctx, rng, faker)
		default:
			s.doRead(ctx, rng)
		}
	}
}

// randomSlot picks a 10 minute grid point during opening hours so that
// concurrent workers regularly land inside each other's conflict window.
func (s *Simulator) randomSlot(rng *rand.Rand) string {
	day := s.day0.AddDate(0, 0, rng.Intn(s.config.Days))
	at := day.Add(9*time.Hour + time.Duration(rng.Intn(48))*10*time.Minute)
	return at.Format(time.RFC3339)
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	req := api.ScheduleRequest{
		PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		DoctorID:  s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String(),
		DateTime:  s.randomSlot(rng),
		Reason:    faker.RandomString(visitReasons),
	}

	start := time.Now()
	appt, err := s.api.Schedule(ctx, req)
	s.metrics.Schedule.Record(time.Since(start), err)
	if err == nil {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) doChange(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	start := time.Now()

	switch rng.Intn(5) {
	case 0:
		id, ok := s.pool.RandomAppointment(rng)
		if !ok {
			return
		}
		at := s.randomSlot(rng)
		_, err := s.api.Update(ctx, id, api.UpdateRequest{DateTime: &at})
		s.metrics.Reschedule.Record(time.Since(start), err)
	case 1:
		id, ok := s.pool.RandomAppointment(rng)
		if !ok {
			return
		}
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = s.api.Confirm(ctx, id)
		case 1:
			_, err = s.api.Cancel(ctx, id)
		case 2:
			notes := "seen by " + faker.FirstName()
			_, err = s.api.Complete(ctx, id, &notes)
		default:
			_, err = s.api.NoShow(ctx, id)
		}
		s.metrics.Transition.Record(time.Since(start), err)
	case 2, 3:
		_, err := s.api.ProcessNext(ctx)
		s.metrics.ProcessNext.Record(time.Since(start), err)
	default:
		_, err := s.api.Undo(ctx)
		s.metrics.Undo.Record(time.Since(start), err)
	}
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	start := time.Now()

	if rng.Intn(2) == 0 {
		doctor := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
		_, err := s.api.List(ctx, url.Values{"doctor_id": {doctor.String()}})
		s.metrics.ListDoctor.Record(time.Since(start), err)
		return
	}

	day := s.day0.AddDate(0, 0, rng.Intn(s.config.Days))
	_, err := s.api.DailyReport(ctx, day.Format("2006-01-02"))
	s.metrics.Report.Record(time.Since(start), err)
}

// VerifySpacing reads back every doctor's active appointments and fails if
// any two sit closer than the conflict window.
func (s *Simulator) VerifySpacing(ctx context.Context) error {
	var violations []string

	for _, doctor := range s.pool.Doctors {
		resp, err := s.api.List(ctx, url.Values{"doctor_id": {doctor.String()}})
		if err != nil {
			return errors.Wrapf(err, "list doctor %s", doctor)
		}

		var active []api.AppointmentResponse
		for _, a := range resp.Appointments {
			if a.Status == "scheduled" || a.Status == "confirmed" {
				active = append(active, a)
			}
		}

		// The list is date ordered, so neighbours are the closest pairs.
		for i := 1; i < len(active); i++ {
			gap := active[i].DateTime.Sub(active[i-1].DateTime)
			if gap < s.config.ConflictWindow {
				violations = append(violations, fmt.Sprintf("doctor %s: #%d and #%d are %s apart",
					doctor, active[i-1].ID, active[i].ID, gap))
			}
		}
	}

	if len(violations) > 0 {
		return errors.Newf("%d violations:\n%s", len(violations), strings.Join(violations, "\n"))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Schedule", &s.metrics.Schedule)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Status change", &s.metrics.Transition)
	printOperationReport("Process next", &s.metrics.ProcessNext)
	printOperationReport("Undo", &s.metrics.Undo)
	printOperationReport("List by doctor", &s.metrics.ListDoctor)
	printOperationReport("Daily report", &s.metrics.Report)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Refused: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}
