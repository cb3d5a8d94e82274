package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// reportJobTimeout bounds a single scheduled report run
const reportJobTimeout = 5 * time.Minute

// CronService runs the scheduled reporting job
type CronService struct {
	cron      *cron.Cron
	schedule  string
	reporting *ReportingService
	logger    *logrus.Logger
}

// NewCronService creates a new CronService. Schedules use seconds precision:
// "0 0 6 * * *" runs at 6:00 AM every day.
func NewCronService(schedule string, reporting *ReportingService, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		schedule:  schedule,
		reporting: reporting,
		logger:    logger,
	}
}

// Start registers the report job and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.dailyReportJob); err != nil {
		return fmt.Errorf("failed to schedule report job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Cron service started")
	return nil
}

// Stop waits for a running job to finish and stops the scheduler
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// dailyReportJob logs the lesson totals and failed payments of the trailing window
func (s *CronService) dailyReportJob() {
	ctx, cancel := context.WithTimeout(context.Background(), reportJobTimeout)
	defer cancel()

	if err := s.RunReports(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Report job failed")
	}
}

// RunReports runs both reporting queries once
func (s *CronService) RunReports(ctx context.Context) error {
	startTime := time.Now()

	totals, err := s.reporting.CalculateLessonTotal(ctx)
	if err != nil {
		return fmt.Errorf("lesson totals: %w", err)
	}

	failed, err := s.reporting.FindCustomersWithFailedPayments(ctx)
	if err != nil {
		return fmt.Errorf("failed payments: %w", err)
	}

	customerIDs := make([]string, 0, len(failed))
	for _, report := range failed {
		customerIDs = append(customerIDs, report.Customer.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_total":    totals.PaymentTotal,
		"fee_total":        totals.FeeTotal,
		"net_total":        totals.NetTotal,
		"failed_customers": customerIDs,
		"duration":         time.Since(startTime).String(),
	}).Info("[CRON] Daily lesson report")

	return nil
}
