package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/dependencies/mocks"
	"github.com/mcoot/estimategame/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	random  *mocks.MockRandom
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.random = mocks.NewMockRandom()
	s.service = New(s.random)
}

func testItems() []model.Item {
	return []model.Item{
		{ID: "a", Names: map[string]string{"en": "Apple", "fr": "Pomme"}, Adjective: map[string]string{"en": "red", "fr": "rouge"}, BasePrice: 1},
		{ID: "b", Names: map[string]string{"en": "Bike", "es-MX": "Bici"}, BasePrice: 300},
		{ID: "c", Names: map[string]string{"en": "Car"}, BasePrice: 20000},
	}
}

func (s *ServiceSuite) TestDefaultCatalogLoads() {
	s.Require().NoError(s.service.LoadDefault())
	s.Greater(s.service.Count(), 5)

	item, err := s.service.GetItem("croissant")
	s.Require().NoError(err)
	s.Equal("Cuernito", item.Names[model.LanguageSpanishMexican])
	s.Equal(1.4, item.BasePrice)
}

func (s *ServiceSuite) TestEmptyCatalog() {
	_, err := s.service.RandomItem(nil)
	s.ErrorIs(err, model.ErrCatalogEmpty)
}

func (s *ServiceSuite) TestRandomItemUsesRandomIndex() {
	s.Require().NoError(s.service.LoadItems(testItems()))
	s.random.QueueIntn(2, 0)

	id, err := s.service.RandomItem(nil)
	s.Require().NoError(err)
	s.Equal(model.ItemID("c"), id)

	id, err = s.service.RandomItem(nil)
	s.Require().NoError(err)
	s.Equal(model.ItemID("a"), id)
}

func (s *ServiceSuite) TestRandomItemSkipsExcluded() {
	s.Require().NoError(s.service.LoadItems(testItems()))
	exclude := model.ItemID("b")
	s.random.QueueIntn(0, 1)

	id, err := s.service.RandomItem(&exclude)
	s.Require().NoError(err)
	s.Equal(model.ItemID("a"), id)

	id, err = s.service.RandomItem(&exclude)
	s.Require().NoError(err)
	s.Equal(model.ItemID("c"), id, "index past the excluded item shifts by one")
}

func (s *ServiceSuite) TestRandomItemSingleItemRepeats() {
	s.Require().NoError(s.service.LoadItems(testItems()[:1]))
	exclude := model.ItemID("a")

	id, err := s.service.RandomItem(&exclude)
	s.Require().NoError(err)
	s.Equal(model.ItemID("a"), id)
}

func (s *ServiceSuite) TestGetItemNotFound() {
	s.Require().NoError(s.service.LoadItems(testItems()))
	_, err := s.service.GetItem("zzz")
	s.ErrorIs(err, model.ErrItemNotFound)
}

func (s *ServiceSuite) TestLoadItemsValidates() {
	s.Error(s.service.LoadItems([]model.Item{{ID: "", Names: map[string]string{"en": "x"}}}))
	s.Error(s.service.LoadItems([]model.Item{{ID: "a", Names: map[string]string{"fr": "x"}}}))
	s.Error(s.service.LoadItems([]model.Item{{ID: "a", Names: map[string]string{"en": "x"}, BasePrice: -1}}))
	s.Error(s.service.LoadItems(append(testItems(), testItems()[0])))
	s.Equal(0, s.service.Count())
}

func (s *ServiceSuite) TestLoadYAMLRejectsUnknownFields() {
	err := s.service.LoadYAML([]byte("items:\n  - id: a\n    colour: red\n"))
	s.Error(err)
}

func (s *ServiceSuite) TestLoadFromFile() {
	path := filepath.Join(s.T().TempDir(), "items.yaml")
	data := "items:\n  - id: mug\n    names: {en: Mug, fr: Tasse}\n    base_price: 9.5\n"
	s.Require().NoError(os.WriteFile(path, []byte(data), 0o600))

	s.Require().NoError(s.service.LoadFromFile(path))
	s.Equal(1, s.service.Count())
}

func (s *ServiceSuite) TestDisplayLanguageNegotiation() {
	s.Require().NoError(s.service.LoadItems(testItems()))

	tests := []struct {
		accept   string
		wantLang string
		wantName string
	}{
		{"", "en", "Apple"},
		{"fr", "fr", "Pomme"},
		{"fr-CA,fr;q=0.9,en;q=0.8", "fr", "Pomme"},
		{"de", "en", "Apple"},
		{"es-MX", "es-MX", "Apple"}, // no translation, English fallback
	}
	for _, tt := range tests {
		s.Run(tt.accept, func() {
			display, err := s.service.Display("a", tt.accept)
			s.Require().NoError(err)
			s.Equal(tt.wantLang, display.Language)
			s.Equal(tt.wantName, display.Name)
		})
	}

	display, err := s.service.Display("b", "es-MX")
	s.Require().NoError(err)
	s.Equal("Bici", display.Name)
	s.Equal(300.0, display.BasePrice)
}

func (s *ServiceSuite) TestParseLanguage() {
	lang, err := s.service.ParseLanguage("fr")
	s.Require().NoError(err)
	s.Equal("fr", lang)

	lang, err = s.service.ParseLanguage("es-MX")
	s.Require().NoError(err)
	s.Equal("es-MX", lang)

	_, err = s.service.ParseLanguage("!!")
	s.ErrorIs(err, model.ErrInvalidLocale)
}
