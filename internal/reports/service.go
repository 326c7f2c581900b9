package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// RepositoryPort reads committed documents and stores report snapshots.
type RepositoryPort interface {
	SalesRecords(ctx context.Context, period Period) ([]Record, error)
	PurchaseRecords(ctx context.Context, period Period) ([]Record, error)
	VoidedRecords(ctx context.Context, period Period) ([]Record, error)
	Save(ctx context.Context, reportType string, period Period, records []Record) error
}

// Service builds, persists and exports the statutory reports.
type Service struct {
	repo      RepositoryPort
	issuerRNC string
	outputDir string
}

// NewService builds Service. issuerRNC is the filing company's tax id;
// outputDir receives exported files.
func NewService(repo RepositoryPort, issuerRNC, outputDir string) *Service {
	return &Service{repo: repo, issuerRNC: issuerRNC, outputDir: outputDir}
}

func validatePeriod(period Period) error {
	if period.Year < 2000 || period.Month < 1 || period.Month > 12 {
		return ErrInvalidPeriod
	}
	return nil
}

// Generate builds one report for the period without persisting it.
func (s *Service) Generate(ctx context.Context, reportType string, period Period) (Report, error) {
	if err := validatePeriod(period); err != nil {
		return Report{}, err
	}
	var records []Record
	var err error
	switch reportType {
	case Type606:
		records, err = s.repo.PurchaseRecords(ctx, period)
	case Type607:
		records, err = s.repo.SalesRecords(ctx, period)
	case Type608:
		records, err = s.repo.VoidedRecords(ctx, period)
	default:
		return Report{}, ErrUnknownReportType
	}
	if err != nil {
		return Report{}, err
	}
	text, err := Serialize(reportType, s.issuerRNC, period, records)
	if err != nil {
		return Report{}, err
	}
	return Report{Type: reportType, Period: period, Records: records, Text: text}, nil
}

// GenerateAll builds the three reports of a period concurrently.
func (s *Service) GenerateAll(ctx context.Context, period Period) (BundleResult, error) {
	if err := validatePeriod(period); err != nil {
		return BundleResult{}, err
	}
	var bundle BundleResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bundle.Purchases, err = s.Generate(ctx, Type606, period)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.Sales, err = s.Generate(ctx, Type607, period)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.Voided, err = s.Generate(ctx, Type608, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return BundleResult{}, err
	}
	return bundle, nil
}

// SaveAndExport regenerates a period report, replaces its stored rows and
// writes the statutory file. Returns the report and the file path.
func (s *Service) SaveAndExport(ctx context.Context, reportType string, period Period) (Report, string, error) {
	report, err := s.Generate(ctx, reportType, period)
	if err != nil {
		return Report{}, "", err
	}
	if err := s.repo.Save(ctx, reportType, period, report.Records); err != nil {
		return Report{}, "", err
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return Report{}, "", fmt.Errorf("reports: create output dir: %w", err)
	}
	path := filepath.Join(s.outputDir, FileName(reportType, period))
	if err := os.WriteFile(path, []byte(report.Text), 0o644); err != nil {
		return Report{}, "", fmt.Errorf("reports: write %s: %w", path, err)
	}
	return report, path, nil
}
