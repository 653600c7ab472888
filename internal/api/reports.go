package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/safealert/internal/model"
)

const (
	DefaultReportsPage  = 1
	DefaultReportsLimit = 10
)

type reportData struct {
	Report *model.Report `json:"report"`
}

func reportPath(id string) string {
	return "/reports/" + url.PathEscape(id)
}

func (c *Client) CreateReport(ctx context.Context, r model.NewReport) (*model.Report, error) {
	var data reportData
	if err := c.call(ctx, http.MethodPost, "/reports", r, &data); err != nil {
		return nil, err
	}
	return data.Report, nil
}

// ListReports returns one page of the community feed. Empty filter fields are
// not sent.
func (c *Client) ListReports(ctx context.Context, page, limit int, filter model.ReportFilter) ([]model.Report, model.Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(defaultInt(page, DefaultReportsPage)))
	q.Set("limit", strconv.Itoa(defaultInt(limit, DefaultReportsLimit)))
	if filter.Type != "" {
		q.Set("type", filter.Type)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}

	var data struct {
		Reports    []model.Report   `json:"reports"`
		Pagination model.Pagination `json:"pagination"`
	}
	if err := c.call(ctx, http.MethodGet, "/reports?"+q.Encode(), nil, &data); err != nil {
		return nil, model.Pagination{}, err
	}
	return data.Reports, data.Pagination, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var data reportData
	if err := c.call(ctx, http.MethodGet, reportPath(id), nil, &data); err != nil {
		return nil, err
	}
	return data.Report, nil
}

func (c *Client) MyReports(ctx context.Context) ([]model.Report, error) {
	var data struct {
		Reports []model.Report `json:"reports"`
	}
	if err := c.call(ctx, http.MethodGet, "/reports/my-reports", nil, &data); err != nil {
		return nil, err
	}
	return data.Reports, nil
}

// UpdateReport sends a partial update; only the given fields change.
func (c *Client) UpdateReport(ctx context.Context, id string, fields map[string]any) (*model.Report, error) {
	var data reportData
	if err := c.call(ctx, http.MethodPut, reportPath(id), fields, &data); err != nil {
		return nil, err
	}
	return data.Report, nil
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, reportPath(id), nil, nil)
}

func (c *Client) ReportStats(ctx context.Context) (*model.ReportStats, error) {
	var data struct {
		Stats *model.ReportStats `json:"stats"`
	}
	if err := c.call(ctx, http.MethodGet, "/reports/stats", nil, &data); err != nil {
		return nil, err
	}
	if data.Stats == nil {
		return &model.ReportStats{}, nil
	}
	return data.Stats, nil
}
