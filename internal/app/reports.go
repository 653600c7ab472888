package app

import (
	"context"
	"time"

	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
)

// reportFixMaxAge is how old a cached fix may be when attaching coordinates
// to a report.
const reportFixMaxAge = 5 * time.Minute

// SubmitReport files an incident. Coordinates are attached when a fix is
// available; a location failure never blocks the report.
func (a *App) SubmitReport(ctx context.Context, in SubmitReport) (*model.Report, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	if in.IncidentTime.IsZero() {
		in.IncidentTime = time.Now()
	}
	if in.Visibility == "" {
		in.Visibility = "public"
	}

	loc := model.ReportLocation{Address: in.Address}
	opts := geo.DefaultOptions()
	opts.MaximumAge = reportFixMaxAge
	if fix, err := a.sampler.Sample(ctx, opts); err != nil {
		a.logger.Info("submitting report without coordinates", "error", err)
	} else {
		loc.Coordinates = &model.Coordinates{Latitude: fix.Latitude, Longitude: fix.Longitude}
	}

	report, err := a.client.CreateReport(ctx, model.NewReport{
		Type:         in.Type,
		Location:     loc,
		IncidentTime: in.IncidentTime.UTC(),
		Description:  in.Description,
		IsAnonymous:  in.Anonymous,
		Visibility:   in.Visibility,
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	a.record(model.ActivityEntry{
		ID:          report.ID,
		Type:        model.ActivityReport,
		Title:       "Report: " + model.ReportTypeName(report.Type),
		Description: report.Description,
		Location:    report.Location.Address,
		Timestamp:   report.CreatedAt,
	})
	return report, nil
}

func (a *App) MyReports(ctx context.Context) ([]model.Report, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	return a.client.MyReports(ctx)
}

func (a *App) GetReport(ctx context.Context, in GetReport) (*model.Report, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	return a.client.GetReport(ctx, in.ID)
}

// UpdateReport sends only the fields that were set.
func (a *App) UpdateReport(ctx context.Context, in UpdateReport) (*model.Report, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.Description != "" {
		fields["description"] = in.Description
	}
	if in.Status != "" {
		fields["status"] = in.Status
	}
	if in.Visibility != "" {
		fields["visibility"] = in.Visibility
	}
	if len(fields) == 0 {
		return nil, &ValidationError{Field: "ID", Message: "Nothing to update"}
	}
	return a.client.UpdateReport(ctx, in.ID, fields)
}

func (a *App) DeleteReport(ctx context.Context, in DeleteReport) error {
	if err := a.validate(in); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	return a.client.DeleteReport(ctx, in.ID)
}

func (a *App) ReportStats(ctx context.Context) (*model.ReportStats, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	return a.client.ReportStats(ctx)
}

// FeedPage is one page of the community feed.
type FeedPage struct {
	Reports    []model.Report
	Pagination model.Pagination
}

func (a *App) Feed(ctx context.Context, in Feed) (*FeedPage, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	reports, page, err := a.client.ListReports(ctx, in.Page, in.Limit, model.ReportFilter{Type: in.Type, Status: in.Status})
	if err != nil {
		return nil, err
	}
	return &FeedPage{Reports: reports, Pagination: page}, nil
}
