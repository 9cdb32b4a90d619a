// Package booking is the client for the Atrium amenity-reservation API.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/court-scheduler/internal/timeutil"
)

// The facility has exactly two courts. Court IDs are what users see;
// amenity IDs are what the provider wants.
const (
	CourtOne = "1"
	CourtTwo = "2"

	amenityTypeID   = "10"
	reservationType = "TR"
)

// AmenityID maps a court ID to the provider's amenity ID. Unknown values
// fall back to court one, matching the provider's own default.
func AmenityID(courtID string) int {
	if courtID == CourtTwo {
		return 10
	}
	return 8
}

// OtherCourt returns the alternate member of the two-court set.
func OtherCourt(courtID string) string {
	if courtID == CourtOne {
		return CourtTwo
	}
	return CourtOne
}

// Reservation is one concrete slot to book.
type Reservation struct {
	CourtID string
	Start   time.Time
	End     time.Time
	Guests  int
}

type Client struct {
	hc         *http.Client
	baseURL    string
	occupantID string
	zone       timeutil.Zone
}

func NewClient(baseURL, occupantID string, zone timeutil.Zone) *Client {
	return &Client{
		hc:         &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		occupantID: occupantID,
		zone:       zone,
	}
}

type reservationPayload struct {
	AmenityTypeID   string `json:"amenity_type_id"`
	StartTime       string `json:"start_time"`
	AmenityID       int    `json:"amenity_id"`
	Guests          string `json:"guests"`
	EndTime         string `json:"end_time"`
	ReservationType string `json:"amenity_reservation_type"`
}

// Reserve books one slot. Start and end are sent as local civil time with a
// colon-delimited offset; the provider rejects the bare "-0400" form.
func (c *Client) Reserve(ctx context.Context, accessToken string, r Reservation) error {
	guests := r.Guests
	if guests < 1 {
		guests = 1
	}
	payload := reservationPayload{
		AmenityTypeID:   amenityTypeID,
		StartTime:       c.zone.FormatAPI(r.Start),
		AmenityID:       AmenityID(r.CourtID),
		Guests:          fmt.Sprintf("%d", guests),
		EndTime:         c.zone.FormatAPI(r.End),
		ReservationType: reservationType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/my/occupants/%s/amenity-reservations/", c.baseURL, c.occupantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reservation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("reservation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("reservation rejected for court %s: status %d: %s", r.CourtID, resp.StatusCode, respBody)
	}
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused
	return nil
}
