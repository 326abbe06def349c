package payments

import (
	"testing"
	"time"

	"github.com/allez-events/server/internal/domain/events"
	"github.com/stretchr/testify/require"
)

func TestAmountInCents(t *testing.T) {
	require.Equal(t, int64(2500), amountInCents(25))
	require.Equal(t, int64(1999), amountInCents(19.99))
	require.Equal(t, int64(10), amountInCents(0.1))
	require.Equal(t, int64(0), amountInCents(0))
}

func TestProductMetadata(t *testing.T) {
	meta := productMetadata(&events.Event{
		Categories: []string{"music", "nightlife"},
		TotalSeats: 120,
		MinAge:     18,
		HostID:     "host-1",
		EventDate:  time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC),
		StartTime:  "19:00",
		EndTime:    "23:00",
	})
	require.Equal(t, "music,nightlife", meta["categories"])
	require.Equal(t, "120", meta["totalSeats"])
	require.Equal(t, "18", meta["minAge"])
	require.Equal(t, "host-1", meta["hostId"])
	require.Equal(t, "2026-10-03", meta["eventDate"])
	require.Equal(t, "19:00", meta["startTime"])
	require.Equal(t, "23:00", meta["endTime"])
}

func TestImageURL(t *testing.T) {
	c := &Client{cdnPrefix: "https://cdn.example.com"}
	require.Equal(t, "https://cdn.example.com/1700000000_poster.jpg", c.imageURL("1700000000_poster.jpg"))
	require.Empty(t, c.imageURL(""))

	bare := &Client{}
	require.Empty(t, bare.imageURL("1700000000_poster.jpg"))
}
