package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/mcoot/estimategame/internal/dependencies/random"
	"github.com/mcoot/estimategame/internal/model"
)

//go:embed items.yaml
var defaultCatalog []byte

// supportedLanguages lists the display languages; the first one is the fallback
var supportedLanguages = []language.Tag{
	language.English,
	language.French,
	language.MustParse(model.LanguageSpanishMexican),
}

// ServiceInterface is the item lookup used by the state machine and bots
type ServiceInterface interface {
	RandomItem(exclude *model.ItemID) (model.ItemID, error)
	GetItem(id model.ItemID) (*model.Item, error)
}

// Service holds the static item catalog
type Service struct {
	random  random.Random
	matcher language.Matcher

	mu    sync.RWMutex
	items []model.Item
	byID  map[model.ItemID]int
}

var _ ServiceInterface = (*Service)(nil)

// New creates an empty catalog Service
func New(random random.Random) *Service {
	return &Service{
		random:  random,
		matcher: language.NewMatcher(supportedLanguages),
		byID:    make(map[model.ItemID]int),
	}
}

type catalogFile struct {
	Items []catalogEntry `yaml:"items"`
}

type catalogEntry struct {
	ID         string            `yaml:"id"`
	Names      map[string]string `yaml:"names"`
	Adjectives map[string]string `yaml:"adjectives"`
	ImageURL   string            `yaml:"image_url"`
	BasePrice  float64           `yaml:"base_price"`
}

// LoadDefault loads the catalog embedded in the binary
func (s *Service) LoadDefault() error {
	return s.LoadYAML(defaultCatalog)
}

// LoadFromFile loads a YAML catalog from disk
func (s *Service) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.LoadYAML(data)
}

// LoadYAML parses a YAML catalog and replaces the current items
func (s *Service) LoadYAML(data []byte) error {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	items := make([]model.Item, 0, len(file.Items))
	for _, e := range file.Items {
		items = append(items, model.Item{
			ID:        model.ItemID(e.ID),
			Names:     e.Names,
			Adjective: e.Adjectives,
			ImageURL:  e.ImageURL,
			BasePrice: e.BasePrice,
		})
	}
	return s.LoadItems(items)
}

// LoadItems validates and installs a set of items (useful for testing)
func (s *Service) LoadItems(items []model.Item) error {
	byID := make(map[model.ItemID]int, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("catalog item %d has no id", i)
		}
		if _, dup := byID[item.ID]; dup {
			return fmt.Errorf("duplicate catalog item %q", item.ID)
		}
		if item.Names[model.LanguageEnglish] == "" {
			return fmt.Errorf("catalog item %q has no English name", item.ID)
		}
		if err := model.ValidateEstimation(item.BasePrice); err != nil {
			return fmt.Errorf("catalog item %q: base price: %w", item.ID, err)
		}
		byID[item.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
	s.byID = byID
	return nil
}

// Count returns the number of items in the catalog
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// RandomItem picks an item uniformly at random. When exclude is set and the
// catalog holds another item, the excluded one is never picked.
func (s *Service) RandomItem(exclude *model.ItemID) (model.ItemID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.items) == 0 {
		return "", model.ErrCatalogEmpty
	}

	skip := -1
	if exclude != nil && len(s.items) > 1 {
		if idx, ok := s.byID[*exclude]; ok {
			skip = idx
		}
	}

	n := len(s.items)
	if skip >= 0 {
		n--
	}
	idx := s.random.Intn(n)
	if skip >= 0 && idx >= skip {
		idx++
	}
	return s.items[idx].ID, nil
}

// GetItem returns the item with the given ID
func (s *Service) GetItem(id model.ItemID) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrItemNotFound, id)
	}
	item := s.items[idx]
	return &item, nil
}

// Display resolves an item for the best matching supported language.
// acceptLanguage may be a single tag or an Accept-Language header value.
func (s *Service) Display(id model.ItemID, acceptLanguage string) (*model.ItemDisplay, error) {
	item, err := s.GetItem(id)
	if err != nil {
		return nil, err
	}

	lang := s.MatchLanguage(acceptLanguage)
	return &model.ItemDisplay{
		ID:        item.ID,
		Language:  lang,
		Name:      localized(item.Names, lang),
		Adjective: localized(item.Adjective, lang),
		ImageURL:  item.ImageURL,
		BasePrice: item.BasePrice,
	}, nil
}

// MatchLanguage returns the supported language tag closest to the request
func (s *Service) MatchLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supportedLanguages[0].String()
	}
	_, idx, _ := s.matcher.Match(tags...)
	return supportedLanguages[idx].String()
}

// ParseLanguage validates an explicit language tag and maps it to the
// closest supported language
func (s *Service) ParseLanguage(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidLocale, tag)
	}
	_, idx, _ := s.matcher.Match(parsed)
	return supportedLanguages[idx].String(), nil
}

func localized(values map[string]string, lang string) string {
	if v, ok := values[lang]; ok && v != "" {
		return v
	}
	return values[model.LanguageEnglish]
}
