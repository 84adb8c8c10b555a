package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"clinicvoice/config"
	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/services/directory"
	"clinicvoice/services/tasks"
	"clinicvoice/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitWorker runs the async worker and the periodic maintenance scheduler in
// the background.
func InitWorker(dir directory.Service, cal calendar.API) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(cal))
	mux.HandleFunc(tasks.TypeHoldSweep, handleHoldSweep(dir, cal))
	mux.HandleFunc(tasks.TypeDirectoryRefresh, handleDirectoryRefresh(dir))

	go func() {
		log.Println("[Worker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[Worker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[Worker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()

	go runScheduler()
}

// runScheduler enqueues the periodic maintenance tasks.
func runScheduler() {
	scheduler := asynq.NewScheduler(redisOpts(), nil)

	if _, err := scheduler.Register("@every 5m", asynq.NewTask(tasks.TypeHoldSweep, nil)); err != nil {
		log.Printf("[Scheduler] Failed to register hold sweep: %v", err)
	}
	if _, err := scheduler.Register("@every 15m", asynq.NewTask(tasks.TypeDirectoryRefresh, nil)); err != nil {
		log.Printf("[Scheduler] Failed to register directory refresh: %v", err)
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("[Scheduler] Scheduler stopped: %v", err)
	}
}

// handleReminderTask fires a booking reminder. The event is re-checked so a
// cancelled appointment never triggers one.
func handleReminderTask(cal calendar.API) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid reminder payload", zap.Error(err))
			return err
		}

		events, err := cal.ListEvents(ctx, p.CalendarRef, p.Start, p.End)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			logger.Info("reminder skipped, appointment no longer exists",
				zap.String("patientID", p.PatientID), zap.Time("start", p.Start))
			return nil
		}

		// Delivery channel (SMS gateway) is attached at deployment; the queue
		// entry itself is the contract here.
		logger.Info("booking reminder due",
			zap.String("patient", p.PatientName),
			zap.String("phone", p.Phone),
			zap.String("practitioner", p.PractitionerName),
			zap.Time("start", p.Start))
		return nil
	}
}

// handleHoldSweep deletes provisional events whose hold lapsed without a
// commit. Covers crashes between hold and release.
func handleHoldSweep(dir directory.Service, cal calendar.API) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		practitioners, err := dir.All(ctx)
		if err != nil {
			return err
		}

		cutoff := time.Now().Add(-2 * config.HoldTTL())
		from := time.Now()
		to := from.AddDate(0, 0, 14)

		var swept int
		for _, p := range practitioners {
			events, err := cal.ListEvents(ctx, p.CalendarRef, from, to)
			if err != nil {
				logger.Warn("hold sweep skipped calendar",
					zap.String("calendarRef", p.CalendarRef), zap.Error(err))
				continue
			}
			for _, ev := range events {
				if !ev.Provisional || ev.Created.IsZero() || ev.Created.After(cutoff) {
					continue
				}
				if err := cal.DeleteEvent(ctx, p.CalendarRef, ev.ID); err != nil {
					logger.Warn("failed to sweep orphan provisional event",
						zap.String("eventID", ev.ID), zap.Error(err))
					continue
				}
				swept++
			}
		}
		if swept > 0 {
			logger.Info("swept orphan provisional events", zap.Int("count", swept))
		}
		return nil
	}
}

// handleDirectoryRefresh keeps the roster snapshot warm.
func handleDirectoryRefresh(dir directory.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		return dir.Refresh(ctx)
	}
}
