package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

var matcherCatalog = []models.Product{
	{ID: 1, Name: "Шуруповерт Makita DF333", Brand: "Makita", Price: 25000, Category: "шуруповерты", Description: "Аккумуляторный шуруповерт"},
	{ID: 2, Name: "Перфоратор Bosch GBH 240", Brand: "Bosch", Price: 60000, Category: "перфораторы", Description: "Сетевой перфоратор"},
	{ID: 3, Name: "Болгарка DeWalt DWE4157", Brand: "DeWalt", Price: 45000, Category: "болгарки", Description: "Углошлифовальная машина"},
}

func TestMatchExactName(t *testing.T) {
	m := NewMatcher()

	p, kind, ok := m.Match("хочу шуруповерт makita df333 пожалуйста", matcherCatalog)
	require.True(t, ok)
	assert.Equal(t, MatchExact, kind)
	assert.Equal(t, 1, p.ID)
}

func TestMatchPartialUnique(t *testing.T) {
	m := NewMatcher()

	p, kind, ok := m.Match("перфораторы", matcherCatalog)
	require.True(t, ok)
	assert.Equal(t, MatchPartial, kind)
	assert.Equal(t, 2, p.ID)
}

func TestMatchFuzzyTypo(t *testing.T) {
	m := NewMatcher()

	// One word of the message appears inside a product name.
	p, kind, ok := m.Match("нужен dwe4157", matcherCatalog)
	require.True(t, ok)
	assert.Equal(t, MatchFuzzy, kind)
	assert.Equal(t, 3, p.ID)
}

func TestMatchNoHit(t *testing.T) {
	m := NewMatcher()

	_, _, ok := m.Match("посоветуйте газонокосилку для большого участка и дачи", matcherCatalog)
	assert.False(t, ok)
}

func TestMatchEmptyInput(t *testing.T) {
	m := NewMatcher()

	_, _, ok := m.Match("", matcherCatalog)
	assert.False(t, ok)

	_, _, ok = m.Match("makita", nil)
	assert.False(t, ok)
}
