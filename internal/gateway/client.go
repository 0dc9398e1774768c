package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/signal-watch/signalwatch/internal/model"
)

// ClientOptions configures the raw registry HTTP client.
type ClientOptions struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// SmoothRPS paces requests to the host below the hard budget so bursts
	// from many workers do not arrive as a wall. Default: 10 rps.
	SmoothRPS float64
}

// Client speaks the registry's HTTP API. It performs no retries and no budget
// accounting; the Gateway layers those on top.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	smooth    *rate.Limiter
}

// NewClient creates a registry HTTP client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "signalwatch/1.0"
	}
	if opts.SmoothRPS <= 0 {
		opts.SmoothRPS = 10
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		smooth: rate.NewLimiter(rate.Limit(opts.SmoothRPS), 1),
	}
}

// wire shapes

type profilePayload struct {
	CompanyNumber  string `json:"company_number"`
	CompanyName    string `json:"company_name"`
	CompanyStatus  string `json:"company_status"`
	DateOfCreation string `json:"date_of_creation"`
	Jurisdiction   string `json:"jurisdiction"`
}

type filingHistoryPayload struct {
	Items []struct {
		TransactionID string `json:"transaction_id"`
		Date          string `json:"date"`
		Category      string `json:"category"`
		Description   string `json:"description"`
	} `json:"items"`
}

type officerListPayload struct {
	Items []struct {
		Name        string `json:"name"`
		OfficerRole string `json:"officer_role"`
		ResignedOn  string `json:"resigned_on"`
		Links       struct {
			Officer struct {
				Appointments string `json:"appointments"`
			} `json:"officer"`
		} `json:"links"`
	} `json:"items"`
}

type appointmentListPayload struct {
	Items []struct {
		AppointedTo struct {
			CompanyNumber string `json:"company_number"`
			CompanyName   string `json:"company_name"`
		} `json:"appointed_to"`
		OfficerRole string `json:"officer_role"`
		ResignedOn  string `json:"resigned_on"`
	} `json:"items"`
}

// GetProfile fetches the canonical company record.
func (c *Client) GetProfile(ctx context.Context, number string) (*model.Entity, error) {
	var p profilePayload
	if err := c.get(ctx, "/company/"+url.PathEscape(number), &p); err != nil {
		return nil, err
	}

	ent := &model.Entity{
		Number:       p.CompanyNumber,
		Name:         p.CompanyName,
		Status:       p.CompanyStatus,
		Jurisdiction: p.Jurisdiction,
	}
	if p.DateOfCreation != "" {
		t, err := time.Parse("2006-01-02", p.DateOfCreation)
		if err != nil {
			return nil, &ApiError{
				Kind:    KindPermanent,
				Message: fmt.Sprintf("company %s: bad date_of_creation %q", number, p.DateOfCreation),
				Err:     err,
			}
		}
		ent.IncorporatedOn = t
	}
	return ent, nil
}

// GetFilings fetches filing-history metadata for a company.
func (c *Client) GetFilings(ctx context.Context, number string) ([]model.Document, error) {
	var p filingHistoryPayload
	if err := c.get(ctx, "/company/"+url.PathEscape(number)+"/filing-history", &p); err != nil {
		return nil, err
	}

	docs := make([]model.Document, 0, len(p.Items))
	for _, it := range p.Items {
		doc := model.Document{
			ID:           it.TransactionID,
			EntityNumber: number,
			Category:     it.Category,
			Description:  it.Description,
		}
		if it.Date != "" {
			if t, err := time.Parse("2006-01-02", it.Date); err == nil {
				doc.FilingDate = t
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetOfficers fetches the officer list for a company.
func (c *Client) GetOfficers(ctx context.Context, number string) ([]model.Officer, error) {
	var p officerListPayload
	if err := c.get(ctx, "/company/"+url.PathEscape(number)+"/officers", &p); err != nil {
		return nil, err
	}

	officers := make([]model.Officer, 0, len(p.Items))
	for _, it := range p.Items {
		officers = append(officers, model.Officer{
			ID:   officerIDFromLink(it.Links.Officer.Appointments),
			Name: it.Name,
			Appointments: []model.Appointment{{
				EntityNumber: number,
				Role:         it.OfficerRole,
				Active:       it.ResignedOn == "",
			}},
		})
	}
	return officers, nil
}

// GetOfficerAppointments fetches every appointment held by an officer.
func (c *Client) GetOfficerAppointments(ctx context.Context, officerID string) ([]model.Appointment, error) {
	var p appointmentListPayload
	if err := c.get(ctx, "/officers/"+url.PathEscape(officerID)+"/appointments", &p); err != nil {
		return nil, err
	}

	apps := make([]model.Appointment, 0, len(p.Items))
	for _, it := range p.Items {
		apps = append(apps, model.Appointment{
			EntityNumber: it.AppointedTo.CompanyNumber,
			Role:         it.OfficerRole,
			Active:       it.ResignedOn == "",
		})
	}
	return apps, nil
}

// officerIDFromLink pulls the officer identifier out of an appointments link
// of the form /officers/{id}/appointments. Pre-digital records carry no link
// and yield an empty ID.
func officerIDFromLink(link string) string {
	parts := strings.Split(strings.Trim(link, "/"), "/")
	if len(parts) >= 2 && parts[0] == "officers" {
		return parts[1]
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.smooth.Wait(ctx); err != nil {
		return eris.Wrap(err, "registry: smoothing wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	// The registry uses HTTP basic auth with the API key as username.
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyNetErr(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		ae := &ApiError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
		if ae.Kind == KindRateLimited {
			ae.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		if ae.Message == "" {
			ae.Message = http.StatusText(resp.StatusCode)
		}
		return ae
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ApiError{
			Kind:    KindPermanent,
			Message: fmt.Sprintf("malformed response for %s", path),
			Err:     err,
		}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
