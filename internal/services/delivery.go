package services

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

const earthRadiusKm = 6371.0

// Quoter computes a delivery quote for a destination address.
type Quoter interface {
	Quote(ctx context.Context, destination string) (models.DeliveryQuote, error)
}

var deliveryQuotes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_quotes_total",
	Help: "Delivery quote computations by result.",
}, []string{"result"})

// DeliveryService turns a free-text destination address into a
// delivery quote: normalize → geocode (cached) → distance → fare.
type DeliveryService struct {
	normalizer *AddressNormalizer
	geocoder   GeocodeClient
	cache      *GeocodeCache
	sf         singleflight.Group

	originAddress string
	cityStem      string
	baseFare      int
	perKmFare     int
}

func NewDeliveryService(normalizer *AddressNormalizer, geocoder GeocodeClient, cache *GeocodeCache, originAddress, homeCity string, baseFare, perKmFare int) *DeliveryService {
	return &DeliveryService{
		normalizer:    normalizer,
		geocoder:      geocoder,
		cache:         cache,
		originAddress: strings.ToLower(strings.TrimSpace(originAddress)),
		cityStem:      strings.TrimSuffix(strings.ToLower(homeCity), "ы"),
		baseFare:      baseFare,
		perKmFare:     perKmFare,
	}
}

// Quote computes the delivery distance and fare for a destination
// address. Failures are *models.QuoteError.
func (s *DeliveryService) Quote(ctx context.Context, destination string) (models.DeliveryQuote, error) {
	toCoords, err := s.resolve(ctx, destination, false)
	if err != nil {
		s.countFailure(err)
		return models.DeliveryQuote{}, err
	}

	fromCoords, err := s.origin(ctx)
	if err != nil {
		s.countFailure(err)
		return models.DeliveryQuote{}, err
	}

	distance := haversineKm(fromCoords, toCoords)
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		deliveryQuotes.WithLabelValues("invalid_distance").Inc()
		return models.DeliveryQuote{}, &models.QuoteError{
			Kind:    models.QuoteInvalidDistance,
			Message: "не удалось вычислить расстояние",
		}
	}

	km := int(math.Ceil(distance))
	if km == 0 && strings.ToLower(strings.TrimSpace(destination)) != s.originAddress {
		// A zero-km quote for a non-origin address is almost always a
		// false-exact geocode match.
		deliveryQuotes.WithLabelValues("invalid_distance").Inc()
		return models.DeliveryQuote{}, &models.QuoteError{
			Kind:    models.QuoteInvalidDistance,
			Message: "расстояние 0 км — возможно, ошибка в адресе",
		}
	}

	quote := models.DeliveryQuote{
		Km:    km,
		Price: s.baseFare + s.perKmFare*km,
	}

	utils.LogInfo(ctx, "delivery quote computed",
		slog.String("address", destination),
		slog.Int("km", quote.Km),
		slog.Int("price", quote.Price),
	)
	deliveryQuotes.WithLabelValues("ok").Inc()
	return quote, nil
}

// resolve geocodes an address through the candidate list, stopping at
// the first success. Destination lookups reject results outside the
// home city; origin lookups pass allowOutside=true.
func (s *DeliveryService) resolve(ctx context.Context, address string, allowOutside bool) (models.Coordinate, error) {
	var noResult, upstreamErrs int

	for _, candidate := range s.normalizer.Variants(address) {
		if coord, ok := s.cache.Get(candidate); ok {
			geocodeLookups.WithLabelValues("cache").Inc()
			return coord, nil
		}

		// Concurrent lookups of the same candidate share one upstream call.
		v, err, _ := s.sf.Do(candidate, func() (interface{}, error) {
			geocodeLookups.WithLabelValues("upstream").Inc()
			return s.geocoder.Search(ctx, candidate)
		})
		if err != nil {
			upstreamErrs++
			utils.LogWarn(ctx, "geocode candidate failed",
				slog.String("candidate", candidate),
				slog.Any("error", err),
			)
			continue
		}

		place, _ := v.(*GeocodePlace)
		if place == nil {
			noResult++
			continue
		}

		if !allowOutside && !s.inHomeCity(place) {
			noResult++
			continue
		}

		s.cache.Put(candidate, place.Coord)
		return place.Coord, nil
	}

	if upstreamErrs > 0 && noResult == 0 {
		return models.Coordinate{}, &models.QuoteError{
			Kind:    models.QuoteUpstreamError,
			Message: "сервис геокодирования недоступен",
		}
	}
	return models.Coordinate{}, &models.QuoteError{
		Kind:    models.QuoteNotFound,
		Message: "адрес не найден",
	}
}

func (s *DeliveryService) origin(ctx context.Context) (models.Coordinate, error) {
	if coord, ok := s.cache.Origin(); ok {
		return coord, nil
	}

	// Origin resolution may land outside the home city: the warehouse
	// address is trusted.
	coord, err := s.resolve(ctx, s.originAddress, true)
	if err != nil {
		return models.Coordinate{}, err
	}
	s.cache.SetOrigin(coord)
	return coord, nil
}

func (s *DeliveryService) inHomeCity(place *GeocodePlace) bool {
	if place.City != "" && strings.Contains(strings.ToLower(place.City), s.cityStem) {
		return true
	}
	return strings.Contains(strings.ToLower(place.DisplayName), s.cityStem)
}

func (s *DeliveryService) countFailure(err error) {
	if qe, ok := err.(*models.QuoteError); ok {
		deliveryQuotes.WithLabelValues(strings.ToLower(qe.Kind)).Inc()
		return
	}
	deliveryQuotes.WithLabelValues("error").Inc()
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(a, b models.Coordinate) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Pow(math.Sin(dLon/2), 2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
