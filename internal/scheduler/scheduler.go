package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-regime/internal/weather"
)

// Refresher fetches and stores the trailing history of a location.
type Refresher interface {
	FetchAndStore(ctx context.Context, loc weather.Location, days int) error
}

// Scheduler periodically refreshes the stored history of tracked locations,
// so history requests can fall back to it when upstream is down.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	locations []weather.Location
	interval  time.Duration
	days      int
}

// New creates a new Scheduler that keeps `days` days of history per location.
func New(locations []weather.Location, interval time.Duration, days int, service Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		locations: locations,
		interval:  interval,
		days:      days,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 360
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.refresh)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) refresh() {
	log.Println("scheduler: running history refresh job")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			if err := s.service.FetchAndStore(ctx, loc, s.days); err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", loc, err)
			}
		}()
	}
	wg.Wait()
	log.Println("scheduler: completed history refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
