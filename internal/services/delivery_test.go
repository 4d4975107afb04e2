package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	fn    func(query string) (*GeocodePlace, error)
}

func (f *fakeGeocoder) Search(_ context.Context, query string) (*GeocodePlace, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(query)
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var (
	originCoord = models.Coordinate{Lat: 43.27, Lon: 76.95}
	destCoord   = models.Coordinate{Lat: 43.30, Lon: 76.95}
)

// cityGeocoder resolves the warehouse address and any "абая" street to
// fixed coordinates inside the home city.
func cityGeocoder() *fakeGeocoder {
	return &fakeGeocoder{fn: func(query string) (*GeocodePlace, error) {
		switch {
		case strings.Contains(query, "райымбека"):
			return &GeocodePlace{Coord: originCoord, DisplayName: "проспект Райымбека, Алматы", City: "Алматы"}, nil
		case strings.Contains(query, "абая"):
			return &GeocodePlace{Coord: destCoord, DisplayName: "проспект Абая, Алматы", City: "Алматы"}, nil
		default:
			return nil, nil
		}
	}}
}

func newTestDelivery(geocoder GeocodeClient) *DeliveryService {
	return NewDeliveryService(
		newTestNormalizer(),
		geocoder,
		NewGeocodeCache(),
		"Алматы, проспект Райымбека, 206к",
		"алматы",
		500, 200,
	)
}

func TestHaversine(t *testing.T) {
	distance := haversineKm(originCoord, destCoord)
	// 0.03 degrees of latitude is about 3.34 km.
	assert.InDelta(t, 3.34, distance, 0.05)

	assert.InDelta(t, distance, haversineKm(destCoord, originCoord), 1e-9)
	assert.Zero(t, haversineKm(originCoord, originCoord))
}

func TestQuoteComputesFare(t *testing.T) {
	s := newTestDelivery(cityGeocoder())

	quote, err := s.Quote(context.Background(), "Абая 10")
	require.NoError(t, err)
	assert.Equal(t, 4, quote.Km)
	assert.Equal(t, 500+200*4, quote.Price)
}

func TestQuoteCachesCoordinates(t *testing.T) {
	geocoder := cityGeocoder()
	s := newTestDelivery(geocoder)

	_, err := s.Quote(context.Background(), "Абая 10")
	require.NoError(t, err)
	callsAfterFirst := geocoder.callCount()

	_, err = s.Quote(context.Background(), "Абая 10")
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, geocoder.callCount(), "second quote must be served from cache")
}

func TestQuoteNotFound(t *testing.T) {
	geocoder := &fakeGeocoder{fn: func(string) (*GeocodePlace, error) {
		return nil, nil
	}}
	s := newTestDelivery(geocoder)

	_, err := s.Quote(context.Background(), "несуществующий адрес 1")
	var qe *models.QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, models.QuoteNotFound, qe.Kind)
}

func TestQuoteRejectsOutsideHomeCity(t *testing.T) {
	geocoder := &fakeGeocoder{fn: func(query string) (*GeocodePlace, error) {
		if strings.Contains(query, "райымбека") {
			return &GeocodePlace{Coord: originCoord, DisplayName: "проспект Райымбека, Алматы", City: "Алматы"}, nil
		}
		return &GeocodePlace{Coord: destCoord, DisplayName: "Астана, Казахстан", City: "Астана"}, nil
	}}
	s := newTestDelivery(geocoder)

	_, err := s.Quote(context.Background(), "Абая 10")
	var qe *models.QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, models.QuoteNotFound, qe.Kind)
}

func TestQuoteUpstreamError(t *testing.T) {
	geocoder := &fakeGeocoder{fn: func(string) (*GeocodePlace, error) {
		return nil, errors.New("timeout")
	}}
	s := newTestDelivery(geocoder)

	_, err := s.Quote(context.Background(), "Абая 10")
	var qe *models.QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, models.QuoteUpstreamError, qe.Kind)
}

func TestQuoteZeroDistanceRejected(t *testing.T) {
	geocoder := &fakeGeocoder{fn: func(string) (*GeocodePlace, error) {
		// Everything resolves to the warehouse: a false-exact match.
		return &GeocodePlace{Coord: originCoord, DisplayName: "проспект Райымбека, Алматы", City: "Алматы"}, nil
	}}
	s := newTestDelivery(geocoder)

	_, err := s.Quote(context.Background(), "Абая 10")
	var qe *models.QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, models.QuoteInvalidDistance, qe.Kind)
}
